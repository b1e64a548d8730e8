// Package loop orchestrates the active learning workflow: select pairs,
// collect preferences, retrain the model, rank and check convergence.
package loop

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/prefopt/maskrank/pkg/acquisition"
	"github.com/prefopt/maskrank/pkg/encoder"
	"github.com/prefopt/maskrank/pkg/model"
	"github.com/prefopt/maskrank/pkg/session"
)

// State describes where the loop is in its lifecycle.
type State string

const (
	StateInit            State = "init"
	StateIterating       State = "iterating"
	StateConverged       State = "converged"
	StateMaxItersReached State = "max_iters_reached"
)

// Loop drives preferential Bayesian optimization over a fixed candidate
// pool. It is single-threaded and driven by one external caller; all
// stochastic choices go through the injected random source.
type Loop struct {
	cfg      Config
	logger   *slog.Logger
	rng      *rand.Rand
	registry *acquisition.Registry
	strategy model.Strategy
	store    session.Store

	// features and scaler are computed once at construction and frozen.
	features [][]float64
	scaler   *encoder.Scaler

	sessionID        string
	prefs            []model.Preference
	iteration        int
	totalComparisons int
	history          []session.Snapshot
	converged        bool
	state            State
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// WithRand injects the random source used for all sampling.
func WithRand(rng *rand.Rand) Option {
	return func(l *Loop) { l.rng = rng }
}

// WithStrategy overrides the default logistic preference strategy.
func WithStrategy(s model.Strategy) Option {
	return func(l *Loop) { l.strategy = s }
}

// WithStore attaches a session store, enabling save/load and auto-backups.
func WithStore(store session.Store) Option {
	return func(l *Loop) { l.store = store }
}

// WithRegistry overrides the acquisition policy registry.
func WithRegistry(r *acquisition.Registry) Option {
	return func(l *Loop) { l.registry = r }
}

// New encodes all masks once with enc, fits the scaler on the full batch
// and builds the loop. No training occurs yet.
func New(masks []encoder.Mask, enc encoder.FeatureEncoder, cfg Config, opts ...Option) (*Loop, error) {
	if len(masks) < 2 {
		return nil, model.InvalidInputError{Reason: fmt.Sprintf("need at least 2 candidates, have %d", len(masks))}
	}
	return NewFromFeatures(enc.EncodeBatch(masks), cfg, opts...)
}

// NewFromFeatures builds a loop from an already-encoded feature matrix.
func NewFromFeatures(features [][]float64, cfg Config, opts ...Option) (*Loop, error) {
	if len(features) < 2 {
		return nil, model.InvalidInputError{Reason: fmt.Sprintf("need at least 2 candidates, have %d", len(features))}
	}

	l := &Loop{
		cfg:      cfg,
		logger:   slog.Default(),
		features: features,
		scaler:   encoder.FitScaler(features),
		state:    StateInit,
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.rng == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		l.rng = rand.New(rand.NewSource(seed))
	}
	if l.registry == nil {
		l.registry = acquisition.NewRegistry()
	}
	if l.strategy == nil {
		l.strategy = model.NewLogisticStrategy(cfg.TrainConfig(), l.logger)
	}

	// Fail fast on a bad policy name instead of on the first batch.
	if _, err := l.registry.Get(cfg.Acquisition); err != nil {
		return nil, model.InvalidInputError{Reason: err.Error()}
	}

	l.logger.Info("active learning loop initialized",
		"candidates", len(features), "dim", len(features[0]), "acquisition", cfg.Acquisition)

	return l, nil
}

// GetNextBatch returns the next pairs to query. Until the model has been
// trained at least once, the configured policy is bypassed in favor of
// uniform random pairs over the full candidate pool. n <= 0 uses the
// configured batch size.
func (l *Loop) GetNextBatch(n int) ([]acquisition.Pair, error) {
	if n <= 0 {
		n = l.cfg.NPairsPerIteration
	}

	if !l.strategy.IsTrained() {
		candidates := make([]int, len(l.features))
		for i := range candidates {
			candidates[i] = i
		}
		pairs, err := acquisition.NewRandom().Acquire(nil, candidates, l.features, n, l.rng)
		if err != nil {
			return nil, err
		}
		l.logger.Debug("selected bootstrap pairs", "iteration", l.iteration, "pairs", len(pairs))
		return pairs, nil
	}

	policy, err := l.registry.Get(l.cfg.Acquisition)
	if err != nil {
		return nil, err
	}

	pairs, err := l.strategy.SelectPairs(l.features, policy, n, l.rng)
	if err != nil {
		return nil, err
	}

	l.logger.Debug("selected pairs", "iteration", l.iteration, "policy", policy.Name(), "pairs", len(pairs))
	return pairs, nil
}

// AddPreferences appends the new outcomes and retrains the model on the
// entire accumulated preference set. Non-binary (tie) labels are logged
// and dropped from the training set but still count as completed
// interactions. If retraining fails, the model, iteration counter and
// ranking history are left exactly as they were.
func (l *Loop) AddPreferences(ctx context.Context, pairs []acquisition.Pair, labels []int) error {
	if len(pairs) != len(labels) {
		return model.InvalidInputError{
			Reason: fmt.Sprintf("got %d pairs but %d labels", len(pairs), len(labels)),
		}
	}

	for _, p := range pairs {
		if p.I == p.J || p.I < 0 || p.J < 0 || p.I >= len(l.features) || p.J >= len(l.features) {
			return model.InvalidInputError{Reason: fmt.Sprintf("invalid pair (%d, %d)", p.I, p.J)}
		}
	}

	for k, p := range pairs {
		if labels[k] != 0 && labels[k] != 1 {
			l.logger.Warn("skipping tie preference", "i", p.I, "j", p.J, "label", labels[k])
			continue
		}
		l.prefs = append(l.prefs, model.Preference{I: p.I, J: p.J, Label: labels[k]})
	}
	l.totalComparisons += len(pairs)

	if err := l.strategy.Train(l.prefs, l.features, l.scaler, l.rng); err != nil {
		return fmt.Errorf("retraining model: %w", err)
	}

	l.iteration++

	ranking, scores, err := l.strategy.GetRanking(l.features)
	if err != nil {
		return fmt.Errorf("computing ranking: %w", err)
	}

	topK := l.cfg.TopK
	if topK > len(ranking) {
		topK = len(ranking)
	}
	snap := session.Snapshot{
		Iteration: l.iteration,
		Ranking:   ranking,
		Scores:    scores,
		TopK:      append([]int(nil), ranking[:topK]...),
	}
	l.history = append(l.history, snap)

	l.checkConvergence()
	l.logger.Info("iteration completed",
		"iteration", l.iteration, "comparisons", l.totalComparisons, "converged", l.converged)

	return l.maybeBackup(ctx)
}

// checkConvergence updates the loop state: the hard iteration cap wins,
// otherwise the top-K stability rule applies.
func (l *Loop) checkConvergence() {
	switch {
	case l.iteration >= l.cfg.MaxIterations:
		l.converged = true
		l.state = StateMaxItersReached
		l.logger.Info("reached max iterations", "max_iterations", l.cfg.MaxIterations)
	case stableTopK(l.history, l.cfg.ConvergenceWindow, l.cfg.ConvergenceThreshold, l.cfg.TopK):
		l.converged = true
		l.state = StateConverged
		l.logger.Info("top-k ranking stabilized", "window", l.cfg.ConvergenceWindow)
	default:
		l.state = StateIterating
	}
}

// maybeBackup writes an auto-backup entry when a session is attached and
// the valid-comparison count hits the configured interval. The backup goes
// under a derived id and never touches the primary session entry.
func (l *Loop) maybeBackup(ctx context.Context) error {
	if l.sessionID == "" || l.store == nil || l.cfg.BackupInterval <= 0 {
		return nil
	}
	if len(l.prefs) == 0 || len(l.prefs)%l.cfg.BackupInterval != 0 {
		return nil
	}

	doc, err := l.buildSession()
	if err != nil {
		return err
	}

	backupID := session.BackupID(l.sessionID, len(l.prefs))
	if err := l.store.Save(ctx, backupID, doc); err != nil {
		return fmt.Errorf("writing auto-backup: %w", err)
	}
	l.logger.Info("auto-backup created", "backup_id", backupID)

	return session.CleanupBackups(ctx, l.store, l.sessionID, l.cfg.KeepBackups)
}

// GetRanking returns the current ranking and scores.
func (l *Loop) GetRanking() ([]int, []float64, error) {
	return l.strategy.GetRanking(l.features)
}

// HasConverged reports whether either terminal condition has been reached.
func (l *Loop) HasConverged() bool { return l.converged }

// State returns the loop's lifecycle state.
func (l *Loop) State() State { return l.state }

// Progress is a read-only view of the loop's current standing.
type Progress struct {
	Iteration        int       `json:"iteration"`
	TotalComparisons int       `json:"total_comparisons"`
	MaxIterations    int       `json:"max_iterations"`
	Converged        bool      `json:"converged"`
	State            State     `json:"state"`
	Ranking          []int     `json:"ranking,omitempty"`
	Scores           []float64 `json:"scores,omitempty"`
	TopK             []int     `json:"top_k,omitempty"`
}

// GetProgress returns progress information. Ranking fields are empty until
// the model has been trained.
func (l *Loop) GetProgress() Progress {
	p := Progress{
		Iteration:        l.iteration,
		TotalComparisons: l.totalComparisons,
		MaxIterations:    l.cfg.MaxIterations,
		Converged:        l.converged,
		State:            l.state,
	}

	if l.strategy.IsTrained() {
		if ranking, scores, err := l.strategy.GetRanking(l.features); err == nil {
			topK := l.cfg.TopK
			if topK > len(ranking) {
				topK = len(ranking)
			}
			p.Ranking = ranking
			p.Scores = scores
			p.TopK = ranking[:topK]
		}
	}

	return p
}

// Features exposes the frozen encoded feature matrix.
func (l *Loop) Features() [][]float64 { return l.features }

// Scaler exposes the frozen scaler fitted at construction.
func (l *Loop) Scaler() *encoder.Scaler { return l.scaler }

// SessionID returns the attached session id, if any.
func (l *Loop) SessionID() string { return l.sessionID }

// SaveSession persists the full session. An empty id creates a new session
// in the store and attaches it to the loop.
func (l *Loop) SaveSession(ctx context.Context, id string) (string, error) {
	if l.store == nil {
		return "", fmt.Errorf("no session store attached")
	}

	if id == "" {
		cfg, err := json.Marshal(l.cfg)
		if err != nil {
			return "", fmt.Errorf("marshaling config: %w", err)
		}
		id, err = l.store.Create(ctx, cfg)
		if err != nil {
			return "", fmt.Errorf("creating session: %w", err)
		}
	}
	l.sessionID = id

	doc, err := l.buildSession()
	if err != nil {
		return "", err
	}
	if err := l.store.Save(ctx, id, doc); err != nil {
		return "", fmt.Errorf("saving session: %w", err)
	}

	l.logger.Info("session saved", "session_id", id)
	return id, nil
}

// LoadSession restores loop state from a stored session. The candidate
// pool and its frozen features stay as constructed; preferences, history,
// counters and the trained model come from the stored document.
func (l *Loop) LoadSession(ctx context.Context, id string) error {
	if l.store == nil {
		return fmt.Errorf("no session store attached")
	}

	doc, err := l.store.Load(ctx, id)
	if err != nil {
		return err
	}

	l.sessionID = id
	l.prefs = doc.Preferences
	l.iteration = doc.Iteration
	l.totalComparisons = doc.TotalComparisons
	l.history = doc.History
	l.converged = doc.Converged

	switch {
	case l.converged:
		l.state = StateConverged
		if l.iteration >= l.cfg.MaxIterations {
			l.state = StateMaxItersReached
		}
	case l.iteration > 0:
		l.state = StateIterating
	default:
		l.state = StateInit
	}

	if doc.ScalerState != nil {
		l.scaler = doc.ScalerState
	}
	if len(doc.ModelState) > 0 {
		if err := l.strategy.UnmarshalState(doc.ModelState); err != nil {
			return fmt.Errorf("restoring model state: %w", err)
		}
		l.logger.Info("model restored from session", "session_id", id)
	}

	l.logger.Info("session loaded", "session_id", id, "iteration", l.iteration)
	return nil
}

// buildSession assembles the persisted document from current loop state.
func (l *Loop) buildSession() (*session.Session, error) {
	cfg, err := json.Marshal(l.cfg)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}

	doc := &session.Session{
		SessionID:        l.sessionID,
		Config:           cfg,
		Preferences:      l.prefs,
		Iteration:        l.iteration,
		TotalComparisons: l.totalComparisons,
		ScalerState:      l.scaler,
		Converged:        l.converged,
		History:          l.history,
	}

	if l.strategy.IsTrained() {
		state, err := l.strategy.MarshalState()
		if err != nil {
			return nil, fmt.Errorf("marshaling model state: %w", err)
		}
		doc.ModelState = state

		if ranking, scores, err := l.strategy.GetRanking(l.features); err == nil {
			doc.Ranking = ranking
			doc.Scores = scores
		}
	}

	return doc, nil
}
