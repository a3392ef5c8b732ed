package behavior

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/otakon/companion/internal/models"
	"go.uber.org/zap"
)

// Ceiling-exceeded reasons returned by AddCorrection. Ordinary negative
// results, not errors.
const (
	ReasonGameCeiling   = "per-game active correction limit reached (5)"
	ReasonGlobalCeiling = "global active correction limit reached (10)"
)

// Repo is the persistence collaborator for per-user behavior rows.
// Get returns (nil, nil) when no row exists yet.
type Repo interface {
	Get(ctx context.Context, userID string) (*models.BehaviorData, error)
	Upsert(ctx context.Context, userID string, data *models.BehaviorData) error
}

// Store owns per-user BehaviorData. Every mutation goes through a
// per-user lock guarding a fresh read-merge-write cycle, so concurrent
// updaters for the same user are serialized in arrival order and neither
// update is lost. Different users are fully independent.
type Store struct {
	repo   Repo
	logger *zap.Logger
	locks  keyedMutex
	now    func() time.Time
}

// NewStore creates a behavior store. logger may be nil.
func NewStore(repo Repo, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{repo: repo, logger: logger, now: time.Now}
}

// GetBehaviorData reads the user's record, returning empty defaults when no
// row exists. A read failure also yields defaults: behavior context is an
// enhancement, not a gate on answering the user.
func (s *Store) GetBehaviorData(ctx context.Context, userID string) *models.BehaviorData {
	data, err := s.repo.Get(ctx, userID)
	if err != nil {
		s.logger.Warn("behavior_read_failed_using_defaults",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return models.DefaultBehaviorData()
	}
	if data == nil {
		return models.DefaultBehaviorData()
	}
	return data
}

// UpdateBehaviorData runs mutate on a freshly-read copy of the user's
// record under the per-user lock, then writes it back. A second concurrent
// updater for the same user waits for the first to finish and then starts
// its own cycle from the just-written state; it never merges onto stale
// data. The lock is released even when mutate or the write fails.
func (s *Store) UpdateBehaviorData(ctx context.Context, userID string, mutate func(*models.BehaviorData) error) error {
	unlock := s.locks.lock(userID)
	defer unlock()

	data, err := s.repo.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to read behavior data: %w", err)
	}
	if data == nil {
		data = models.DefaultBehaviorData()
	}

	if err := mutate(data); err != nil {
		return err
	}
	data.UpdatedAt = s.now()

	if err := s.repo.Upsert(ctx, userID, data); err != nil {
		return fmt.Errorf("failed to write behavior data: %w", err)
	}
	return nil
}

// AddCorrection appends a correction subject to the active-correction
// ceilings. added=false with a reason is the ordinary ceiling-exceeded
// result; err is reserved for persistence failures.
func (s *Store) AddCorrection(ctx context.Context, userID string, c models.Correction) (added bool, reason string, err error) {
	err = s.UpdateBehaviorData(ctx, userID, func(data *models.BehaviorData) error {
		switch c.Scope {
		case models.CorrectionScopeGame:
			if data.ActiveCorrectionCount(models.CorrectionScopeGame, c.GameTitle) >= models.MaxActiveGameCorrections {
				reason = ReasonGameCeiling
				return errCeiling
			}
		case models.CorrectionScopeGlobal:
			if data.ActiveCorrectionCount(models.CorrectionScopeGlobal, "") >= models.MaxActiveGlobalCorrections {
				reason = ReasonGlobalCeiling
				return errCeiling
			}
		}
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = s.now()
		}
		c.IsActive = true
		data.AICorrections = append(data.AICorrections, c)
		return nil
	})
	if err == errCeiling {
		return false, reason, nil
	}
	if err != nil {
		return false, "", err
	}
	return true, "", nil
}

// ToggleCorrection flips a correction's active flag by id. Returns false
// (not an error) when the id is unknown.
func (s *Store) ToggleCorrection(ctx context.Context, userID string, id uuid.UUID) (bool, error) {
	found := false
	err := s.UpdateBehaviorData(ctx, userID, func(data *models.BehaviorData) error {
		for i := range data.AICorrections {
			if data.AICorrections[i].ID == id {
				data.AICorrections[i].IsActive = !data.AICorrections[i].IsActive
				found = true
				return nil
			}
		}
		return errNotFound
	})
	if err == errNotFound {
		return false, nil
	}
	return found, err
}

// RemoveCorrection deletes a correction by id. Returns false (not an
// error) when the id is unknown.
func (s *Store) RemoveCorrection(ctx context.Context, userID string, id uuid.UUID) (bool, error) {
	found := false
	err := s.UpdateBehaviorData(ctx, userID, func(data *models.BehaviorData) error {
		for i := range data.AICorrections {
			if data.AICorrections[i].ID == id {
				data.AICorrections = append(data.AICorrections[:i], data.AICorrections[i+1:]...)
				found = true
				return nil
			}
		}
		return errNotFound
	})
	if err == errNotFound {
		return false, nil
	}
	return found, err
}

// SetPreferences replaces the user's AI preferences.
func (s *Store) SetPreferences(ctx context.Context, userID string, prefs models.AIPreferences) error {
	return s.UpdateBehaviorData(ctx, userID, func(data *models.BehaviorData) error {
		data.AIPreferences = prefs
		return nil
	})
}

// AddResponseTopics merges newly-discussed topics in front of the existing
// list for the scope key, deduplicating case-insensitively and truncating
// to the most recent twenty.
func (s *Store) AddResponseTopics(ctx context.Context, userID, scopeKey string, newTopics []string) error {
	if len(newTopics) == 0 {
		return nil
	}
	return s.UpdateBehaviorData(ctx, userID, func(data *models.BehaviorData) error {
		if data.ResponseTopicsCache == nil {
			data.ResponseTopicsCache = map[string][]string{}
		}
		merged := make([]string, 0, len(newTopics)+len(data.ResponseTopicsCache[scopeKey]))
		seen := make(map[string]bool)
		for _, t := range append(append([]string{}, newTopics...), data.ResponseTopicsCache[scopeKey]...) {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			key := strings.ToLower(t)
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, t)
			if len(merged) == models.MaxResponseTopics {
				break
			}
		}
		data.ResponseTopicsCache[scopeKey] = merged
		return nil
	})
}

// IncrementCorrectionApplied bumps the applied counter on a correction
// each time it actually influences a prompt. Best-effort: failures are
// logged and swallowed.
func (s *Store) IncrementCorrectionApplied(ctx context.Context, userID string, id uuid.UUID) {
	err := s.UpdateBehaviorData(ctx, userID, func(data *models.BehaviorData) error {
		for i := range data.AICorrections {
			if data.AICorrections[i].ID == id {
				data.AICorrections[i].AppliedCount++
				return nil
			}
		}
		return errNotFound
	})
	if err != nil && err != errNotFound {
		s.logger.Debug("correction_applied_increment_failed",
			zap.String("user_id", userID),
			zap.String("correction_id", id.String()),
			zap.Error(err),
		)
	}
}

var (
	errCeiling  = sentinelErr("correction ceiling reached")
	errNotFound = sentinelErr("correction not found")
)

type sentinelErr string

func (e sentinelErr) Error() string { return string(e) }

// keyedMutex serializes callers per string key. Entries are removed once
// no caller holds or waits on them, so the map does not grow with the
// user population.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.entries == nil {
		k.entries = make(map[string]*lockEntry)
	}
	e, ok := k.entries[key]
	if !ok {
		e = &lockEntry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
