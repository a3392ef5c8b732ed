package classify

import (
	"regexp"
	"strings"
	"time"

	"github.com/otakon/companion/internal/models"
)

// KnowledgeCutoff is the instant after which the model's built-in knowledge
// is assumed unreliable, forcing grounding for newer content.
var KnowledgeCutoff = time.Date(2025, time.January, 31, 23, 59, 59, 0, time.UTC)

// Curated titles released after the knowledge cutoff. Matched
// case-insensitively against both the bound game title and the query text.
var postCutoffTitles = []string{
	"monster hunter wilds",
	"ghost of yotei",
	"death stranding 2",
	"doom: the dark ages",
	"mafia: the old country",
	"borderlands 4",
	"hollow knight: silksong",
	"grand theft auto vi",
	"gta 6",
	"metroid prime 4",
	"fable",
	"crimson desert",
}

// Curated live-service game names whose meta shifts season to season.
var liveServiceTitles = []string{
	"fortnite",
	"league of legends",
	"valorant",
	"apex legends",
	"overwatch",
	"counter-strike",
	"cs2",
	"destiny 2",
	"warzone",
	"call of duty",
	"marvel rivals",
	"genshin impact",
	"honkai",
	"dota 2",
	"rocket league",
	"rainbow six siege",
	"world of warcraft",
	"final fantasy xiv",
	"path of exile",
	"diablo iv",
	"helldivers 2",
}

// Rule patterns, one group per intent class. Order of evaluation inside
// Classify is behaviorally significant: first matching rule wins.
var (
	metaKeywordsRe = regexp.MustCompile(`(?i)\b(meta|tier\s*list|best\s+(?:loadout|build|comp|agent|character|champion|deck)|balance|buff(?:s|ed)?|nerf(?:s|ed)?|season|ranked|competitive|patch)\b`)

	currentNewsRe = regexp.MustCompile(`(?i)\b(?:latest|recent|today'?s?|this\s+week'?s?)\b.{0,30}\b(?:gaming\s+news|game\s+news|announcements?)\b|\bwhat(?:'s| is)\s+(?:new|happening)\s+in\s+gaming\b`)

	patchNotesRe = regexp.MustCompile(`(?i)\b(?:patch\s*notes?|latest\s+patch|latest\s+update|balance\s+changes?|hotfix|changelog)\b`)

	releaseDateRe = regexp.MustCompile(`(?i)\b(?:release\s*date|when\s+(?:is|does|will)\b.{0,40}\b(?:come\s+out|release|launch|drop)|coming\s+out|launch\s+date|preorder|pre-order)\b`)

	nearFutureYearRe = regexp.MustCompile(`\b(202[5-9]|203\d)\b`)

	gameHelpRe = regexp.MustCompile(`(?i)\b(?:how\s+do\s+i|how\s+to|stuck\s+on|can'?t\s+(?:beat|find|get\s+past)|boss|build|walkthrough|strategy|guide|tips?\s+for|where\s+(?:is|do\s+i\s+find)|best\s+way\s+to|defeat|unlock|quest|puzzle)\b`)
)

// OverrideCuratedTitles replaces the curated title lists from configuration.
// Nil slices keep the built-in defaults. Call once at startup, before
// serving; reads are not synchronized.
func OverrideCuratedTitles(postCutoff, liveService []string) {
	if postCutoff != nil {
		postCutoffTitles = lowercaseAll(postCutoff)
	}
	if liveService != nil {
		liveServiceTitles = lowercaseAll(liveService)
	}
}

func lowercaseAll(titles []string) []string {
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		out = append(out, strings.ToLower(strings.TrimSpace(t)))
	}
	return out
}

// Classify categorizes a user query plus game context into one of the fixed
// intent classes. Pure function: no side effects, advisory input to the
// grounding decision.
//
// Rules are checked in a fixed priority order; the first match wins.
func Classify(queryText, gameTitle string, igdbReleaseEpoch int64) models.QueryType {
	query := strings.ToLower(queryText)
	title := strings.ToLower(gameTitle)

	// 1. Games released after the knowledge cutoff always need grounding.
	if igdbReleaseEpoch > 0 && time.Unix(igdbReleaseEpoch, 0).After(KnowledgeCutoff) {
		return models.QueryTypePostCutoffGame
	}
	if matchesAny(postCutoffTitles, title, query) {
		return models.QueryTypePostCutoffGame
	}

	// 2. Live-service meta questions go stale between seasons.
	isLiveService := matchesAny(liveServiceTitles, title, query)
	if isLiveService && metaKeywordsRe.MatchString(query) {
		return models.QueryTypeLiveServiceMeta
	}

	// 3-5. Time-sensitive phrasing.
	if currentNewsRe.MatchString(query) {
		return models.QueryTypeCurrentNews
	}
	if patchNotesRe.MatchString(query) {
		return models.QueryTypePatchNotes
	}
	if releaseDateRe.MatchString(query) || nearFutureYearRe.MatchString(query) {
		return models.QueryTypeReleaseDates
	}

	// 6. Help-seeking phrasing for non-live-service games is answerable
	// from built-in knowledge.
	if !isLiveService && gameHelpRe.MatchString(query) {
		return models.QueryTypeGameHelp
	}

	return models.QueryTypeGeneralKnowledge
}

func matchesAny(titles []string, boundTitle, query string) bool {
	for _, t := range titles {
		if boundTitle != "" && strings.Contains(boundTitle, t) {
			return true
		}
		if strings.Contains(query, t) {
			return true
		}
	}
	return false
}
