// Package inmemory provides a map-backed session store, primarily for tests.
package inmemory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/prefopt/maskrank/pkg/session"
)

// Store implements session.Store using an in-memory map. Sessions are
// deep-copied through JSON on the way in and out so callers cannot mutate
// stored state by aliasing.
type Store struct {
	mu       sync.RWMutex
	sessions map[string][]byte
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{sessions: make(map[string][]byte)}
}

func (s *Store) Create(_ context.Context, config json.RawMessage) (string, error) {
	id := "session_" + uuid.NewString()[:8]
	now := time.Now().UTC()

	data, err := json.Marshal(&session.Session{
		SessionID: id,
		CreatedAt: now,
		UpdatedAt: now,
		Config:    config,
	})
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = data
	return id, nil
}

func (s *Store) Save(_ context.Context, id string, sess *session.Session) error {
	sess.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = data
	return nil
}

func (s *Store) Load(_ context.Context, id string) (*session.Session, error) {
	s.mu.RLock()
	data, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, session.NotFoundError{ID: id}
	}

	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return session.NotFoundError{ID: id}
	}
	delete(s.sessions, id)
	return nil
}

func (s *Store) Close() error { return nil }
