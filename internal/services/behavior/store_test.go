package behavior

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/otakon/companion/internal/models"
)

// fakeRepo stores serialized copies so concurrent read-modify-write races
// are observable if the store fails to serialize them.
type fakeRepo struct {
	mu     sync.Mutex
	rows   map[string]*models.BehaviorData
	getErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: make(map[string]*models.BehaviorData)}
}

func (f *fakeRepo) Get(_ context.Context, userID string) (*models.BehaviorData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	row, ok := f.rows[userID]
	if !ok {
		return nil, nil
	}
	copied := *row
	copied.AICorrections = append([]models.Correction{}, row.AICorrections...)
	copied.ResponseTopicsCache = make(map[string][]string, len(row.ResponseTopicsCache))
	for k, v := range row.ResponseTopicsCache {
		copied.ResponseTopicsCache[k] = append([]string{}, v...)
	}
	return &copied, nil
}

func (f *fakeRepo) Upsert(_ context.Context, userID string, data *models.BehaviorData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *data
	f.rows[userID] = &copied
	return nil
}

func TestGetBehaviorData_DefaultsOnMissingAndOnError(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	s := NewStore(repo, nil)

	data := s.GetBehaviorData(context.Background(), "u1")
	if !data.AIPreferences.ApplyCorrections {
		t.Error("defaults should enable ApplyCorrections")
	}
	if len(data.AICorrections) != 0 {
		t.Error("defaults should have no corrections")
	}

	repo.getErr = errors.New("connection refused")
	data = s.GetBehaviorData(context.Background(), "u1")
	if data == nil {
		t.Fatal("read failure must still yield defaults")
	}
}

func TestAddCorrection_Ceilings(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	s := NewStore(repo, nil)
	ctx := context.Background()

	for i := 0; i < models.MaxActiveGameCorrections; i++ {
		added, reason, err := s.AddCorrection(ctx, "u1", models.Correction{
			Scope:          models.CorrectionScopeGame,
			GameTitle:      "Elden Ring",
			CorrectionText: fmt.Sprintf("correction %d", i),
			Type:           models.CorrectionTypeFactual,
		})
		if err != nil || !added {
			t.Fatalf("correction %d rejected: added=%v reason=%q err=%v", i, added, reason, err)
		}
	}

	// Sixth active correction for the same game hits the ceiling.
	added, reason, err := s.AddCorrection(ctx, "u1", models.Correction{
		Scope:          models.CorrectionScopeGame,
		GameTitle:      "elden ring", // title match is case-insensitive
		CorrectionText: "one too many",
		Type:           models.CorrectionTypeFactual,
	})
	if err != nil {
		t.Fatalf("ceiling must not be an error: %v", err)
	}
	if added || reason != ReasonGameCeiling {
		t.Errorf("added=%v reason=%q, want rejection with game ceiling reason", added, reason)
	}

	// A different game is unaffected.
	added, _, err = s.AddCorrection(ctx, "u1", models.Correction{
		Scope:          models.CorrectionScopeGame,
		GameTitle:      "Hades",
		CorrectionText: "different game",
		Type:           models.CorrectionTypeStyle,
	})
	if err != nil || !added {
		t.Errorf("correction for another game rejected: %v", err)
	}

	// Global ceiling is independent.
	for i := 0; i < models.MaxActiveGlobalCorrections; i++ {
		added, reason, err = s.AddCorrection(ctx, "u1", models.Correction{
			Scope:          models.CorrectionScopeGlobal,
			CorrectionText: fmt.Sprintf("global %d", i),
			Type:           models.CorrectionTypeBehavior,
		})
		if err != nil || !added {
			t.Fatalf("global correction %d rejected: reason=%q err=%v", i, reason, err)
		}
	}
	added, reason, err = s.AddCorrection(ctx, "u1", models.Correction{
		Scope:          models.CorrectionScopeGlobal,
		CorrectionText: "global overflow",
		Type:           models.CorrectionTypeBehavior,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if added || reason != ReasonGlobalCeiling {
		t.Errorf("added=%v reason=%q, want global ceiling rejection", added, reason)
	}
}

func TestToggleAndRemove_UnknownIDIsNoop(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	s := NewStore(repo, nil)
	ctx := context.Background()

	found, err := s.ToggleCorrection(ctx, "u1", uuid.New())
	if err != nil || found {
		t.Errorf("toggle unknown id: found=%v err=%v, want false,nil", found, err)
	}
	found, err = s.RemoveCorrection(ctx, "u1", uuid.New())
	if err != nil || found {
		t.Errorf("remove unknown id: found=%v err=%v, want false,nil", found, err)
	}
}

func TestToggle_FreesCeilingSlot(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	s := NewStore(repo, nil)
	ctx := context.Background()

	var ids []uuid.UUID
	for i := 0; i < models.MaxActiveGameCorrections; i++ {
		id := uuid.New()
		added, _, err := s.AddCorrection(ctx, "u1", models.Correction{
			ID:             id,
			Scope:          models.CorrectionScopeGame,
			GameTitle:      "Hades",
			CorrectionText: fmt.Sprintf("c%d", i),
			Type:           models.CorrectionTypeStyle,
		})
		if err != nil || !added {
			t.Fatal("setup failed")
		}
		ids = append(ids, id)
	}

	// Deactivating one frees a slot; only active corrections count.
	if found, err := s.ToggleCorrection(ctx, "u1", ids[0]); err != nil || !found {
		t.Fatalf("toggle failed: %v", err)
	}
	added, reason, err := s.AddCorrection(ctx, "u1", models.Correction{
		Scope:          models.CorrectionScopeGame,
		GameTitle:      "Hades",
		CorrectionText: "fits now",
		Type:           models.CorrectionTypeStyle,
	})
	if err != nil || !added {
		t.Errorf("expected add after toggle: added=%v reason=%q err=%v", added, reason, err)
	}
}

func TestAddResponseTopics_DedupAndBound(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	s := NewStore(repo, nil)
	ctx := context.Background()

	if err := s.AddResponseTopics(ctx, "u1", "game-1", []string{"Boss strategy", "builds"}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddResponseTopics(ctx, "u1", "game-1", []string{"BOSS STRATEGY", "lore"}); err != nil {
		t.Fatal(err)
	}

	data := s.GetBehaviorData(ctx, "u1")
	topics := data.ResponseTopicsCache["game-1"]
	want := []string{"BOSS STRATEGY", "lore", "builds"}
	if len(topics) != len(want) {
		t.Fatalf("topics = %v, want %v", topics, want)
	}
	for i := range want {
		if topics[i] != want[i] {
			t.Errorf("topics[%d] = %q, want %q", i, topics[i], want[i])
		}
	}

	// Flooding keeps only the most recent 20.
	var flood []string
	for i := 0; i < 30; i++ {
		flood = append(flood, fmt.Sprintf("topic-%d", i))
	}
	if err := s.AddResponseTopics(ctx, "u1", "game-1", flood); err != nil {
		t.Fatal(err)
	}
	data = s.GetBehaviorData(ctx, "u1")
	if got := len(data.ResponseTopicsCache["game-1"]); got != models.MaxResponseTopics {
		t.Errorf("topic cache size = %d, want %d", got, models.MaxResponseTopics)
	}
	if data.ResponseTopicsCache["game-1"][0] != "topic-0" {
		t.Errorf("most recent topic first, got %q", data.ResponseTopicsCache["game-1"][0])
	}
}

func TestUpdateBehaviorData_ConcurrentUpdatersLoseNothing(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	s := NewStore(repo, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _, _ = s.AddCorrection(ctx, "u1", models.Correction{
			Scope:          models.CorrectionScopeGlobal,
			CorrectionText: "call me Captain",
			Type:           models.CorrectionTypeStyle,
		})
	}()
	go func() {
		defer wg.Done()
		_ = s.SetPreferences(ctx, "u1", models.AIPreferences{
			ResponseHistoryScope:   models.HistoryScopeGlobal,
			ApplyCorrections:       true,
			CorrectionDefaultScope: models.CorrectionScopeGlobal,
		})
	}()
	wg.Wait()

	data := s.GetBehaviorData(ctx, "u1")
	if len(data.AICorrections) != 1 {
		t.Errorf("correction lost: %d corrections", len(data.AICorrections))
	}
	if data.AIPreferences.ResponseHistoryScope != models.HistoryScopeGlobal {
		t.Errorf("preference update lost: %q", data.AIPreferences.ResponseHistoryScope)
	}
}

func TestUpdateBehaviorData_LockReleasedOnMutateError(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	s := NewStore(repo, nil)
	ctx := context.Background()

	boom := errors.New("boom")
	if err := s.UpdateBehaviorData(ctx, "u1", func(*models.BehaviorData) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	// A subsequent update for the same user must not deadlock.
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.SetPreferences(ctx, "u1", models.AIPreferences{ApplyCorrections: true})
	}()
	select {
	case <-done:
	case <-t.Context().Done():
		t.Fatal("update after failed mutate deadlocked")
	}
}

func TestIncrementCorrectionApplied_BestEffort(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	s := NewStore(repo, nil)
	ctx := context.Background()

	id := uuid.New()
	added, _, err := s.AddCorrection(ctx, "u1", models.Correction{
		ID:             id,
		Scope:          models.CorrectionScopeGlobal,
		CorrectionText: "say warden not guard",
		Type:           models.CorrectionTypeTerminology,
	})
	if err != nil || !added {
		t.Fatal("setup failed")
	}

	s.IncrementCorrectionApplied(ctx, "u1", id)
	s.IncrementCorrectionApplied(ctx, "u1", uuid.New()) // unknown id: swallowed

	data := s.GetBehaviorData(ctx, "u1")
	if data.AICorrections[0].AppliedCount != 1 {
		t.Errorf("AppliedCount = %d, want 1", data.AICorrections[0].AppliedCount)
	}
}
