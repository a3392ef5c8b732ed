package classify

import (
	"testing"
	"time"

	"github.com/otakon/companion/internal/models"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	afterCutoff := KnowledgeCutoff.Add(24 * time.Hour).Unix()
	beforeCutoff := KnowledgeCutoff.Add(-365 * 24 * time.Hour).Unix()

	tests := []struct {
		name         string
		query        string
		gameTitle    string
		releaseEpoch int64
		want         models.QueryType
	}{
		{
			name:         "release epoch after cutoff",
			query:        "what should I do first",
			gameTitle:    "Some Brand New Game",
			releaseEpoch: afterCutoff,
			want:         models.QueryTypePostCutoffGame,
		},
		{
			name:      "curated post-cutoff title in query",
			query:     "is monster hunter wilds worth it",
			gameTitle: "",
			want:      models.QueryTypePostCutoffGame,
		},
		{
			name:      "curated post-cutoff title as bound game",
			query:     "how long is the campaign",
			gameTitle: "Ghost of Yotei",
			want:      models.QueryTypePostCutoffGame,
		},
		{
			name:      "live service meta question",
			query:     "what's the current meta for ranked",
			gameTitle: "Valorant",
			want:      models.QueryTypeLiveServiceMeta,
		},
		{
			name:      "live service without meta keywords is not meta",
			query:     "what is the lore behind jett",
			gameTitle: "Valorant",
			want:      models.QueryTypeGeneralKnowledge,
		},
		{
			name:  "current gaming news phrasing",
			query: "what's the latest gaming news this week",
			want:  models.QueryTypeCurrentNews,
		},
		{
			name:         "patch notes phrasing",
			query:        "summarize the latest patch notes",
			gameTitle:    "Elden Ring",
			releaseEpoch: beforeCutoff,
			want:         models.QueryTypePatchNotes,
		},
		{
			name:  "release date phrasing",
			query: "when does the sequel come out",
			want:  models.QueryTypeReleaseDates,
		},
		{
			name:  "near-future year token",
			query: "games slated for 2027",
			want:  models.QueryTypeReleaseDates,
		},
		{
			name:         "help-seeking phrasing on a static game",
			query:        "how do i beat the fire giant, I'm stuck on this boss",
			gameTitle:    "Elden Ring",
			releaseEpoch: beforeCutoff,
			want:         models.QueryTypeGameHelp,
		},
		{
			name:      "help phrasing on live-service game is not game_help",
			query:     "how do i unlock new agents",
			gameTitle: "Valorant",
			want:      models.QueryTypeGeneralKnowledge,
		},
		{
			name:  "fallthrough to general knowledge",
			query: "what inspired the art style of this game",
			want:  models.QueryTypeGeneralKnowledge,
		},
		{
			name:         "post-cutoff epoch outranks patch notes phrasing",
			query:        "latest patch notes please",
			gameTitle:    "Fresh Release",
			releaseEpoch: afterCutoff,
			want:         models.QueryTypePostCutoffGame,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Classify(tt.query, tt.gameTitle, tt.releaseEpoch)
			if got != tt.want {
				t.Errorf("Classify(%q, %q) = %q, want %q", tt.query, tt.gameTitle, got, tt.want)
			}
		})
	}
}
