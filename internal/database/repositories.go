package database

import (
	"github.com/otakon/companion/internal/services/behavior"
	"github.com/otakon/companion/internal/services/grounding"
)

// Ensure concrete repositories satisfy the collaborator interfaces the
// service layer declares.
var (
	_ behavior.Repo        = (*BehaviorRepository)(nil)
	_ grounding.UsageStore = (*GroundingUsageRepository)(nil)
)
