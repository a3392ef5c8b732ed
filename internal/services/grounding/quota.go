package grounding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/otakon/companion/internal/models"
	"github.com/otakon/companion/internal/services/classify"
	"go.uber.org/zap"
)

const (
	// usageCacheTTL bounds how stale a cached usage read may be.
	usageCacheTTL = 5 * time.Minute
	// freeTierLiveServiceSoftCap degrades live_service_meta grounding for
	// free-tier users after this many uses in the month, preserving quota
	// for categories that cannot be answered without grounding.
	freeTierLiveServiceSoftCap = 4
)

// Decision reasons surfaced to callers. Machine-readable, never errors.
const (
	ReasonQuotaExhausted   = "monthly grounding quota exhausted"
	ReasonTimeSensitive    = "query requires post-cutoff or time-sensitive information"
	ReasonLiveServiceMeta  = "live-service meta shifts between seasons"
	ReasonSoftThrottled    = "free tier live-service grounding throttled to preserve quota"
	ReasonStaticKnowledge  = "answerable from built-in knowledge"
)

// UsageStore is the persistence collaborator for grounding usage rows.
type UsageStore interface {
	GetUsage(ctx context.Context, userID, monthYear string) (int, error)
	IncrementUsage(ctx context.Context, userID, monthYear string) error
}

// schemaMissingError marks UsageStore errors caused by the supporting
// table not existing. Implemented by the database layer; declared here so
// the manager can degrade without importing it.
type schemaMissingError interface {
	SchemaMissing() bool
}

// Eligibility is the outcome of one grounding check.
type Eligibility struct {
	UseGrounding   bool             `json:"use_grounding"`
	QueryType      models.QueryType `json:"query_type"`
	Reason         string           `json:"reason"`
	RemainingQuota int              `json:"remaining_quota"`
}

type cacheEntry struct {
	count     int
	fetchedAt time.Time
}

// QuotaManager tracks per-user-per-month grounding usage against tier
// quotas and decides whether a classified query should use grounding.
//
// Usage reads go through a 5-minute in-process cache; increments update
// the cache synchronously and persist asynchronously. If the remote
// store's schema is absent the manager degrades to pure in-memory
// tracking for the remainder of the process lifetime (one-way flag,
// never re-probed).
type QuotaManager struct {
	store  UsageStore
	logger *zap.Logger
	now    func() time.Time

	mu         sync.Mutex
	cache      map[string]cacheEntry // key: userID|monthYear
	memOnly    bool
	memCounts  map[string]int // memory-only fallback counts
	persistFn  func(ctx context.Context, userID, monthYear string)
}

// NewQuotaManager creates a quota manager. logger may be nil.
func NewQuotaManager(store UsageStore, logger *zap.Logger) *QuotaManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &QuotaManager{
		store:     store,
		logger:    logger,
		now:       time.Now,
		cache:     make(map[string]cacheEntry),
		memCounts: make(map[string]int),
	}
	m.persistFn = m.persistIncrement
	return m
}

// SetClock overrides the time source. Used by tests.
func (m *QuotaManager) SetClock(now func() time.Time) { m.now = now }

// CheckEligibility classifies the query and decides whether it should use
// a grounded (web-search-augmented) completion.
func (m *QuotaManager) CheckEligibility(ctx context.Context, userID string, tier models.Tier, queryText, gameTitle string, igdbReleaseEpoch int64) Eligibility {
	queryType := classify.Classify(queryText, gameTitle, igdbReleaseEpoch)
	quota := models.GroundingQuota(tier)
	usage := m.currentUsage(ctx, userID)

	remaining := quota - usage
	if remaining < 0 {
		remaining = 0
	}

	el := Eligibility{QueryType: queryType, RemainingQuota: remaining}

	// Hard cap: exhausted quota wins over every category.
	if usage >= quota {
		el.UseGrounding = false
		el.Reason = ReasonQuotaExhausted
		return el
	}

	switch queryType {
	case models.QueryTypePostCutoffGame, models.QueryTypeCurrentNews,
		models.QueryTypePatchNotes, models.QueryTypeReleaseDates:
		el.UseGrounding = true
		el.Reason = ReasonTimeSensitive

	case models.QueryTypeLiveServiceMeta:
		if tier == models.TierFree && usage >= freeTierLiveServiceSoftCap {
			el.UseGrounding = false
			el.Reason = ReasonSoftThrottled
		} else {
			el.UseGrounding = true
			el.Reason = ReasonLiveServiceMeta
		}

	default: // game_help, general_knowledge
		el.UseGrounding = false
		el.Reason = ReasonStaticKnowledge
	}

	return el
}

// RecordUsage commits one grounding use for the user. The in-memory cache
// is updated synchronously so the next eligibility check in this process
// sees the new count; the remote write happens asynchronously.
func (m *QuotaManager) RecordUsage(ctx context.Context, userID string) {
	monthYear := models.MonthYear(m.now())
	key := cacheKey(userID, monthYear)

	m.mu.Lock()
	if m.memOnly {
		m.memCounts[key]++
		m.mu.Unlock()
		return
	}
	entry, ok := m.cache[key]
	if ok {
		entry.count++
	} else {
		entry = cacheEntry{count: 1, fetchedAt: m.now()}
	}
	m.cache[key] = entry
	m.mu.Unlock()

	go m.persistFn(context.WithoutCancel(ctx), userID, monthYear)
}

func (m *QuotaManager) persistIncrement(ctx context.Context, userID, monthYear string) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := m.store.IncrementUsage(ctx, userID, monthYear); err != nil {
		if m.degradeIfSchemaMissing(err) {
			return
		}
		m.logger.Warn("grounding_usage_persist_failed",
			zap.String("user_id", userID),
			zap.String("month_year", monthYear),
			zap.Error(err),
		)
	}
}

// currentUsage reads the user's usage for the current month through the
// cache, falling back to the remote store on a miss.
func (m *QuotaManager) currentUsage(ctx context.Context, userID string) int {
	monthYear := models.MonthYear(m.now())
	key := cacheKey(userID, monthYear)

	m.mu.Lock()
	if m.memOnly {
		count := m.memCounts[key]
		m.mu.Unlock()
		return count
	}
	if entry, ok := m.cache[key]; ok && m.now().Sub(entry.fetchedAt) < usageCacheTTL {
		m.mu.Unlock()
		return entry.count
	}
	m.mu.Unlock()

	count, err := m.store.GetUsage(ctx, userID, monthYear)
	if err != nil {
		if m.degradeIfSchemaMissing(err) {
			m.mu.Lock()
			count = m.memCounts[key]
			m.mu.Unlock()
			return count
		}
		m.logger.Warn("grounding_usage_read_failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		// Transient read failure: fall back to whatever we had cached
		// rather than failing the user's request.
		m.mu.Lock()
		entry := m.cache[key]
		m.mu.Unlock()
		return entry.count
	}

	m.mu.Lock()
	m.cache[key] = cacheEntry{count: count, fetchedAt: m.now()}
	m.mu.Unlock()
	return count
}

// degradeIfSchemaMissing flips the one-way memory-only flag when the
// remote schema is absent. Returns true if the manager is (now) memory-only.
func (m *QuotaManager) degradeIfSchemaMissing(err error) bool {
	var sm schemaMissingError
	if !asSchemaMissing(err, &sm) || !sm.SchemaMissing() {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.memOnly {
		m.memOnly = true
		// Seed the fallback counts from the cache so in-flight months
		// keep their process-local tallies.
		for k, e := range m.cache {
			m.memCounts[k] = e.count
		}
		m.logger.Warn("grounding_usage_schema_missing_memory_only")
	}
	return true
}

// IsSchemaMissing reports whether err (or anything it wraps) marks the
// recoverable absence of the grounding-usage schema, so callers outside
// the package can fall back instead of failing.
func IsSchemaMissing(err error) bool {
	var sm schemaMissingError
	return asSchemaMissing(err, &sm) && sm.SchemaMissing()
}

func asSchemaMissing(err error, target *schemaMissingError) bool {
	for err != nil {
		if sm, ok := err.(schemaMissingError); ok {
			*target = sm
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func cacheKey(userID, monthYear string) string {
	return fmt.Sprintf("%s|%s", userID, monthYear)
}
