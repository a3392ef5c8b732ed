package grounding

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/otakon/companion/internal/models"
)

type fakeUsageStore struct {
	mu         sync.Mutex
	counts     map[string]int
	getErr     error
	incErr     error
	getCalls   int
	incCalls   int
}

func newFakeUsageStore() *fakeUsageStore {
	return &fakeUsageStore{counts: make(map[string]int)}
}

func (f *fakeUsageStore) GetUsage(_ context.Context, userID, monthYear string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return 0, f.getErr
	}
	return f.counts[userID+"|"+monthYear], nil
}

func (f *fakeUsageStore) IncrementUsage(_ context.Context, userID, monthYear string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incCalls++
	if f.incErr != nil {
		return f.incErr
	}
	f.counts[userID+"|"+monthYear]++
	return nil
}

type missingSchemaErr struct{}

func (missingSchemaErr) Error() string       { return "relation does not exist" }
func (missingSchemaErr) SchemaMissing() bool { return true }

func TestCheckEligibility_DecisionTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		tier          models.Tier
		usage         int
		query         string
		gameTitle     string
		wantGrounding bool
		wantReason    string
		wantRemaining int
	}{
		{
			name:          "post cutoff game grounds",
			tier:          models.TierPro,
			usage:         0,
			query:         "tips for monster hunter wilds",
			wantGrounding: true,
			wantReason:    ReasonTimeSensitive,
			wantRemaining: 30,
		},
		{
			name:          "quota exhausted forces false regardless of type",
			tier:          models.TierFree,
			usage:         8,
			query:         "tips for monster hunter wilds",
			wantGrounding: false,
			wantReason:    ReasonQuotaExhausted,
			wantRemaining: 0,
		},
		{
			name:          "free tier live service soft throttle after 4 uses",
			tier:          models.TierFree,
			usage:         4,
			query:         "current meta tier list",
			gameTitle:     "Apex Legends",
			wantGrounding: false,
			wantReason:    ReasonSoftThrottled,
			wantRemaining: 4,
		},
		{
			name:          "free tier live service under soft cap grounds",
			tier:          models.TierFree,
			usage:         3,
			query:         "current meta tier list",
			gameTitle:     "Apex Legends",
			wantGrounding: true,
			wantReason:    ReasonLiveServiceMeta,
			wantRemaining: 5,
		},
		{
			name:          "pro tier live service ignores soft cap",
			tier:          models.TierPro,
			usage:         20,
			query:         "current meta tier list",
			gameTitle:     "Apex Legends",
			wantGrounding: true,
			wantReason:    ReasonLiveServiceMeta,
			wantRemaining: 10,
		},
		{
			name:          "game help never grounds",
			tier:          models.TierVanguardPro,
			usage:         0,
			query:         "how do i beat this boss",
			gameTitle:     "Elden Ring",
			wantGrounding: false,
			wantReason:    ReasonStaticKnowledge,
			wantRemaining: 100,
		},
		{
			name:          "remaining quota floors at zero",
			tier:          models.TierFree,
			usage:         12,
			query:         "anything",
			wantGrounding: false,
			wantReason:    ReasonQuotaExhausted,
			wantRemaining: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := newFakeUsageStore()
			m := NewQuotaManager(store, nil)
			now := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
			m.SetClock(func() time.Time { return now })
			store.counts["u1|"+models.MonthYear(now)] = tt.usage

			el := m.CheckEligibility(context.Background(), "u1", tt.tier, tt.query, tt.gameTitle, 0)
			if el.UseGrounding != tt.wantGrounding {
				t.Errorf("UseGrounding = %v, want %v", el.UseGrounding, tt.wantGrounding)
			}
			if el.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", el.Reason, tt.wantReason)
			}
			if el.RemainingQuota != tt.wantRemaining {
				t.Errorf("RemainingQuota = %d, want %d", el.RemainingQuota, tt.wantRemaining)
			}
		})
	}
}

func TestCheckEligibility_MonotonicInUsage(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	for _, tier := range []models.Tier{models.TierFree, models.TierPro, models.TierVanguardPro} {
		granted := true
		for usage := 0; usage <= models.GroundingQuota(tier)+2; usage++ {
			store := newFakeUsageStore()
			store.counts["u1|"+models.MonthYear(now)] = usage
			m := NewQuotaManager(store, nil)
			m.SetClock(func() time.Time { return now })

			el := m.CheckEligibility(context.Background(), "u1", tier, "current meta tier list", "Apex Legends", 0)
			if el.UseGrounding && !granted {
				t.Fatalf("tier %s: grounding flipped false->true at usage %d", tier, usage)
			}
			granted = el.UseGrounding
		}
	}
}

func TestRecordUsage_UpdatesCacheSynchronously(t *testing.T) {
	t.Parallel()

	store := newFakeUsageStore()
	m := NewQuotaManager(store, nil)
	now := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return now })

	var persisted sync.WaitGroup
	m.persistFn = func(ctx context.Context, userID, monthYear string) {
		defer persisted.Done()
		_ = store.IncrementUsage(ctx, userID, monthYear)
	}

	// Prime the cache at usage 0.
	el := m.CheckEligibility(context.Background(), "u1", models.TierFree, "latest patch notes", "", 0)
	if !el.UseGrounding {
		t.Fatalf("expected grounding at usage 0, reason=%s", el.Reason)
	}

	for i := 0; i < models.FreeTierQuota; i++ {
		persisted.Add(1)
		m.RecordUsage(context.Background(), "u1")
	}

	// Within the process the count is accurate even before persistence.
	el = m.CheckEligibility(context.Background(), "u1", models.TierFree, "latest patch notes", "", 0)
	if el.UseGrounding {
		t.Error("expected grounding denied after in-process count reached quota")
	}
	if el.Reason != ReasonQuotaExhausted {
		t.Errorf("Reason = %q, want %q", el.Reason, ReasonQuotaExhausted)
	}

	persisted.Wait()
	if got := store.counts["u1|"+models.MonthYear(now)]; got != models.FreeTierQuota {
		t.Errorf("persisted count = %d, want %d", got, models.FreeTierQuota)
	}
}

func TestSchemaMissing_DegradesToMemoryOnlyOnce(t *testing.T) {
	t.Parallel()

	store := newFakeUsageStore()
	store.getErr = missingSchemaErr{}
	m := NewQuotaManager(store, nil)
	now := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return now })

	el := m.CheckEligibility(context.Background(), "u1", models.TierFree, "latest patch notes", "", 0)
	if !el.UseGrounding {
		t.Fatalf("expected grounding with zero memory-only usage, reason=%s", el.Reason)
	}
	firstCalls := store.getCalls

	m.RecordUsage(context.Background(), "u1")
	m.RecordUsage(context.Background(), "u1")

	el = m.CheckEligibility(context.Background(), "u1", models.TierFree, "latest patch notes", "", 0)
	if el.RemainingQuota != models.FreeTierQuota-2 {
		t.Errorf("RemainingQuota = %d, want %d", el.RemainingQuota, models.FreeTierQuota-2)
	}

	// One-way flag: the remote store is never re-probed.
	if store.getCalls != firstCalls {
		t.Errorf("remote store re-probed after schema-missing fallback (%d -> %d calls)", firstCalls, store.getCalls)
	}
	if store.incCalls != 0 {
		t.Errorf("increments persisted remotely after fallback: %d", store.incCalls)
	}
}

func TestCurrentUsage_TransientErrorFallsBackToCache(t *testing.T) {
	t.Parallel()

	store := newFakeUsageStore()
	m := NewQuotaManager(store, nil)
	base := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	now := base
	m.SetClock(func() time.Time { return now })
	m.persistFn = func(context.Context, string, string) {}

	// Prime cache, then record three uses.
	m.CheckEligibility(context.Background(), "u1", models.TierFree, "latest patch notes", "", 0)
	for i := 0; i < 3; i++ {
		m.RecordUsage(context.Background(), "u1")
	}

	// Expire the cache and make the remote flaky: the cached count is
	// still used rather than failing the request.
	now = base.Add(6 * time.Minute)
	store.getErr = errors.New("connection refused")

	el := m.CheckEligibility(context.Background(), "u1", models.TierFree, "latest patch notes", "", 0)
	if el.RemainingQuota != models.FreeTierQuota-3 {
		t.Errorf("RemainingQuota = %d, want %d", el.RemainingQuota, models.FreeTierQuota-3)
	}
}
