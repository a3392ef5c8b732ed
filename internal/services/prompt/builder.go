package prompt

import (
	"fmt"
	"strings"

	"github.com/otakon/companion/internal/models"
)

const (
	// subtabTailChars is how much of each loaded subtab survives injection.
	subtabTailChars = 500
	// subtabTotalCap bounds the total injected subtab text. Earlier
	// subtabs win; later ones are dropped once the cap would be exceeded.
	subtabTotalCap = 15000
)

// Request carries everything the builder needs. Building is a pure
// function of this struct, which makes golden-file testing possible.
type Request struct {
	Conversation    *models.Conversation
	UserQuery       string
	Profile         models.UserProfile
	ProfileOverride *models.UserProfile
	IsActiveSession bool
	UseGrounding    bool
	QueryType       models.QueryType
	Behavior        *models.BehaviorContext
	Interaction     *models.InteractionContext
	Timezone        string
}

// BuildSystemPrompt composes the final system prompt. Template selection is
// mutually exclusive and checked in order: image analysis, unreleased game,
// game-specific, game hub.
func BuildSystemPrompt(req Request) string {
	conv := req.Conversation
	if conv == nil {
		conv = &models.Conversation{}
	}

	var b strings.Builder
	b.WriteString(selectTemplate(conv, req.Interaction))

	profile := req.Profile
	if req.ProfileOverride != nil {
		profile = *req.ProfileOverride
	}
	writeProfileModifiers(&b, profile)

	b.WriteString("\n\n")
	if req.UseGrounding {
		b.WriteString(groundedDirective)
	} else {
		b.WriteString(ungroundedDirective)
	}

	if conv.GameTitle != "" {
		writeGameState(&b, conv)
	}

	writeBehaviorContext(&b, req.Behavior)
	writeInteractionContext(&b, req.Interaction, req.IsActiveSession)
	writeEngagementDepth(&b, conv, req.Interaction)
	writeSubtabs(&b, conv.Subtabs)

	if conv.ContextSummary != "" {
		b.WriteString("\n\nEarlier in this conversation: ")
		b.WriteString(conv.ContextSummary)
	}
	if req.Timezone != "" {
		fmt.Fprintf(&b, "\n\nThe player's timezone is %s; interpret relative dates accordingly.", req.Timezone)
	}

	return b.String()
}

func selectTemplate(conv *models.Conversation, ic *models.InteractionContext) string {
	switch {
	case ic != nil && ic.HasScreenshot:
		return imageAnalysisTemplate
	case conv.IsUnreleased && conv.GameTitle != "":
		return fmt.Sprintf(unreleasedTemplate, conv.GameTitle)
	case conv.GameTitle != "":
		return fmt.Sprintf(gameSpecificTemplate, conv.GameTitle)
	default:
		return gameHubTemplate
	}
}

func writeProfileModifiers(b *strings.Builder, p models.UserProfile) {
	var frags []string
	if f, ok := spoilerFragments[p.SpoilerTolerance]; ok {
		frags = append(frags, f)
	}
	if f, ok := hintStyleFragments[p.HintStyle]; ok {
		frags = append(frags, f)
	}
	if f, ok := playerFocusFragments[p.PlayerFocus]; ok {
		frags = append(frags, f)
	}
	if f, ok := toneFragments[p.PreferredTone]; ok {
		frags = append(frags, f)
	}
	if len(frags) == 0 {
		return
	}
	b.WriteString("\n\nPlayer profile:\n- ")
	b.WriteString(strings.Join(frags, "\n- "))
}

func writeGameState(b *strings.Builder, conv *models.Conversation) {
	fmt.Fprintf(b, "\n\nGame state: the player is at roughly %d%% completion.", conv.GameProgress)
	b.WriteString(" ")
	b.WriteString(progressGuidance(conv.GameProgress))
	if conv.ActiveObjective != "" {
		fmt.Fprintf(b, " Their current objective: %s.", conv.ActiveObjective)
	}
	if conv.Genre != "" {
		fmt.Fprintf(b, " Genre: %s.", conv.Genre)
	}
}

func writeBehaviorContext(b *strings.Builder, bc *models.BehaviorContext) {
	if bc == nil {
		return
	}
	if len(bc.PreviousTopics) > 0 {
		b.WriteString("\n\nPreviously discussed topics (avoid repeating ground already covered unless asked): ")
		b.WriteString(strings.Join(bc.PreviousTopics, "; "))
	}
	if len(bc.ActiveCorrections) > 0 {
		b.WriteString("\n\nThe player has corrected you before. Honor these standing corrections:")
		for _, c := range bc.ActiveCorrections {
			if c.OriginalSnippet != "" {
				fmt.Fprintf(b, "\n- Prefer %q over what you said before (%q)", c.CorrectionText, c.OriginalSnippet)
			} else {
				fmt.Fprintf(b, "\n- %s", c.CorrectionText)
			}
		}
	}
}

func writeInteractionContext(b *strings.Builder, ic *models.InteractionContext, isActiveSession bool) {
	if ic == nil {
		return
	}
	switch {
	case ic.HasScreenshot:
		b.WriteString("\n\nThe user attached a screenshot with this message; anchor your answer in what it shows.")
	case ic.IsFirstMessage:
		b.WriteString("\n\nThis is the user's first message in this conversation. Welcome them briefly, then get straight to their question.")
	case ic.IsReturningUser && !isActiveSession:
		if ic.DaysSinceLastChat > 0 {
			fmt.Fprintf(b, "\n\nThe user is returning after about %d day(s) away. Acknowledge the gap in one short line before answering.", ic.DaysSinceLastChat)
		} else {
			b.WriteString("\n\nThe user is returning after a break. Acknowledge it in one short line before answering.")
		}
	}
	if ic.IsSuggestedPrompt {
		b.WriteString("\n\nThe user clicked a suggested prompt rather than typing. Keep the reply tight and directly on the suggested topic.")
	}
}

// writeEngagementDepth tunes response depth from how invested this
// conversation already is: message volume, progress bucket, and how many
// subtabs have been filled in.
func writeEngagementDepth(b *strings.Builder, conv *models.Conversation, ic *models.InteractionContext) {
	msgCount := len(conv.Messages)
	if ic != nil && ic.MessageCount > msgCount {
		msgCount = ic.MessageCount
	}

	loaded := 0
	for _, st := range conv.Subtabs {
		if st.Status == models.SubtabStatusLoaded && strings.TrimSpace(st.Content) != "" {
			loaded++
		}
	}

	switch {
	case msgCount <= 2 && loaded == 0:
		b.WriteString("\n\nThis conversation is just starting: keep answers compact and ask one clarifying question if the request is ambiguous.")
	case msgCount > 20 || (len(conv.Subtabs) > 0 && loaded == len(conv.Subtabs)):
		b.WriteString("\n\nThis is a deep, established conversation: skip introductory framing, build on shared context, and go into detail where it helps.")
	default:
		b.WriteString("\n\nThis conversation has some history: skip pleasantries and reference earlier context where relevant.")
	}
}

// writeSubtabs injects loaded subtab content as bounded context.
func writeSubtabs(b *strings.Builder, subtabs []models.Subtab) {
	total := 0
	wroteHeader := false
	for _, st := range subtabs {
		if st.Status != models.SubtabStatusLoaded || st.Content == "" {
			continue
		}
		content := st.Content
		if len(content) > subtabTailChars {
			content = content[len(content)-subtabTailChars:]
		}
		if total+len(content) > subtabTotalCap {
			break
		}
		if !wroteHeader {
			b.WriteString("\n\nKnowledge tabs already built for this game:")
			wroteHeader = true
		}
		fmt.Fprintf(b, "\n[%s] %s", st.Title, content)
		total += len(content)
	}
}
