// Package session defines the persisted session document and the Store
// interface for keeping active learning sessions across restarts.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/prefopt/maskrank/pkg/encoder"
	"github.com/prefopt/maskrank/pkg/model"
)

// Snapshot records one iteration's ranking. Immutable once appended to a
// session's history.
type Snapshot struct {
	Iteration int       `json:"iteration"`
	Ranking   []int     `json:"ranking"`
	Scores    []float64 `json:"scores"`
	TopK      []int     `json:"top_k"`
}

// Session is the serializable bundle owned by the active learning loop.
// It is always persisted as a whole, never partially.
type Session struct {
	SessionID        string             `json:"session_id"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
	Config           json.RawMessage    `json:"config"`
	Preferences      []model.Preference `json:"preferences"`
	Iteration        int                `json:"iteration"`
	TotalComparisons int                `json:"total_comparisons"`
	ModelState       json.RawMessage    `json:"model_state,omitempty"`
	ScalerState      *encoder.Scaler    `json:"scaler_state,omitempty"`
	Ranking          []int              `json:"ranking,omitempty"`
	Scores           []float64          `json:"scores,omitempty"`
	Converged        bool               `json:"converged"`
	History          []Snapshot         `json:"history"`
}

// Store persists sessions. Implementations give no concurrency guarantees;
// the loop is the single writer. Backup entries written under derived ids
// must never corrupt the primary session entry.
type Store interface {
	// Create generates a new session id and persists an empty session
	// holding config.
	Create(ctx context.Context, config json.RawMessage) (string, error)

	// Save persists the full session under id.
	Save(ctx context.Context, id string, s *Session) error

	// Load returns the session stored under id, or a NotFoundError.
	Load(ctx context.Context, id string) (*Session, error)

	// List returns all stored session ids, sorted.
	List(ctx context.Context) ([]string, error)

	// Delete removes the session stored under id, or a NotFoundError.
	Delete(ctx context.Context, id string) error

	// Close releases any resources held by the store.
	Close() error
}

// BackupID derives the auto-backup entry id for a session at a given
// comparison count.
func BackupID(id string, totalComparisons int) string {
	return fmt.Sprintf("%s_backup_%d", id, totalComparisons)
}

// CleanupBackups deletes all but the most recent keep backup entries for
// the given session id.
func CleanupBackups(ctx context.Context, store Store, id string, keep int) error {
	ids, err := store.List(ctx)
	if err != nil {
		return err
	}

	prefix := id + "_backup_"
	var backups []string
	for _, candidate := range ids {
		if strings.HasPrefix(candidate, prefix) {
			backups = append(backups, candidate)
		}
	}
	if len(backups) <= keep {
		return nil
	}

	// Backup ids embed the comparison count, so numeric order is age order.
	sort.Slice(backups, func(a, b int) bool {
		return backupSeq(backups[a], prefix) < backupSeq(backups[b], prefix)
	})

	for _, old := range backups[:len(backups)-keep] {
		if err := store.Delete(ctx, old); err != nil {
			return err
		}
	}
	return nil
}

func backupSeq(id, prefix string) int {
	var n int
	fmt.Sscanf(strings.TrimPrefix(id, prefix), "%d", &n)
	return n
}

// Info is a summary of a stored session.
type Info struct {
	SessionID        string    `json:"session_id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	Iteration        int       `json:"iteration"`
	TotalComparisons int       `json:"total_comparisons"`
	Converged        bool      `json:"converged"`
}

// Describe loads summary information for one session.
func Describe(ctx context.Context, store Store, id string) (Info, error) {
	s, err := store.Load(ctx, id)
	if err != nil {
		return Info{}, err
	}
	return Info{
		SessionID:        s.SessionID,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
		Iteration:        s.Iteration,
		TotalComparisons: s.TotalComparisons,
		Converged:        s.Converged,
	}, nil
}
