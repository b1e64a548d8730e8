// Package fs provides a filesystem session store: one JSON document per
// session under a sessions directory.
package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prefopt/maskrank/pkg/session"
)

// Store implements session.Store on the local filesystem. Every write goes
// to a temp file followed by an atomic rename, so a crash mid-write can
// never leave a session file truncated or half-updated.
type Store struct {
	dir string
}

// NewStore creates the sessions directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating sessions dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Create(ctx context.Context, config json.RawMessage) (string, error) {
	id := "session_" + uuid.NewString()[:8]
	now := time.Now().UTC()

	err := s.Save(ctx, id, &session.Session{
		SessionID: id,
		CreatedAt: now,
		UpdatedAt: now,
		Config:    config,
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Save(_ context.Context, id string, sess *session.Session) error {
	sess.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}

	path := s.path(id)
	tmp, err := os.CreateTemp(s.dir, id+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing session file: %w", err)
	}
	return nil
}

func (s *Store) Load(_ context.Context, id string) (*session.Session, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, session.NotFoundError{ID: id}
		}
		return nil, fmt.Errorf("reading session: %w", err)
	}

	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshaling session %s: %w", id, err)
	}
	return &sess, nil
}

func (s *Store) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing sessions dir: %w", err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	err := os.Remove(s.path(id))
	if os.IsNotExist(err) {
		return session.NotFoundError{ID: id}
	}
	return err
}

func (s *Store) Close() error { return nil }

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}
