package models

import "time"

// Tier is the user's subscription tier, which determines the monthly
// web-search grounding quota.
type Tier string

const (
	TierFree        Tier = "free"
	TierPro         Tier = "pro"
	TierVanguardPro Tier = "vanguard_pro"
)

// Monthly grounding quotas per tier.
const (
	FreeTierQuota        = 8
	ProTierQuota         = 30
	VanguardProTierQuota = 100
)

var quotaOverrides map[Tier]int

// SetGroundingQuotaOverrides replaces per-tier quotas from configuration.
// Call once at startup, before serving; reads are not synchronized.
func SetGroundingQuotaOverrides(overrides map[Tier]int) {
	quotaOverrides = overrides
}

// GroundingQuota returns the monthly grounding quota for a tier. Unknown
// tiers get the free quota.
func GroundingQuota(tier Tier) int {
	if q, ok := quotaOverrides[tier]; ok && q > 0 {
		return q
	}
	switch tier {
	case TierPro:
		return ProTierQuota
	case TierVanguardPro:
		return VanguardProTierQuota
	default:
		return FreeTierQuota
	}
}

// QueryType is the intent class assigned to a user query by the classifier.
type QueryType string

const (
	QueryTypePostCutoffGame   QueryType = "post_cutoff_game"
	QueryTypeLiveServiceMeta  QueryType = "live_service_meta"
	QueryTypeCurrentNews      QueryType = "current_news"
	QueryTypePatchNotes       QueryType = "patch_notes"
	QueryTypeReleaseDates     QueryType = "release_dates"
	QueryTypeGameHelp         QueryType = "game_help"
	QueryTypeGeneralKnowledge QueryType = "general_knowledge"
)

// GroundingUsage is one row per user per calendar month.
type GroundingUsage struct {
	UserID     string    `json:"user_id"`
	MonthYear  string    `json:"month_year"`
	UsageCount int       `json:"usage_count"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MonthYear formats a time as the "YYYY-MM" key used by usage records.
func MonthYear(t time.Time) string {
	return t.UTC().Format("2006-01")
}
