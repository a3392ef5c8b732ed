package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/otakon/companion/internal/models"
	"github.com/otakon/companion/internal/services/behavior"
	"github.com/otakon/companion/internal/services/grounding"
	"github.com/otakon/companion/internal/services/prompt"
	"github.com/otakon/companion/internal/services/summarize"
	"github.com/otakon/companion/internal/services/tags"
)

// Completer is the AI chat-completion collaborator.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, messages []models.Message) (string, error)
}

// Pipeline runs one full message cycle: grounding decision, history
// summarization, behavior context, prompt build, AI completion, directive
// extraction and application.
type Pipeline struct {
	quota      *grounding.QuotaManager
	summarizer *summarize.Summarizer
	behavior   *behavior.Store
	completer  Completer
	parser     *tags.Parser
	logger     *zap.Logger
	now        func() time.Time
}

// NewPipeline wires the pipeline from its collaborators.
func NewPipeline(quota *grounding.QuotaManager, summarizer *summarize.Summarizer, store *behavior.Store, completer Completer, parser *tags.Parser, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		quota:      quota,
		summarizer: summarizer,
		behavior:   store,
		completer:  completer,
		parser:     parser,
		logger:     logger,
		now:        time.Now,
	}
}

// Request is one inbound user message with its full surrounding context.
type Request struct {
	UserID          string
	Tier            models.Tier
	Conversation    *models.Conversation
	UserQuery       string
	Profile         models.UserProfile
	ProfileOverride *models.UserProfile
	IsActiveSession bool
	Interaction     *models.InteractionContext
	// ReleaseEpoch is the bound game's first-release time as a Unix epoch,
	// zero when unknown.
	ReleaseEpoch int64
	Timezone     string
}

// Response is the outcome of one pipeline run.
type Response struct {
	CleanContent string
	Directives   *models.DirectiveSet
	Conversation *models.Conversation
	Grounding    grounding.Eligibility
}

// Handle runs the full cycle for one user message. The returned conversation
// is a new value; the input conversation is never mutated.
func (p *Pipeline) Handle(ctx context.Context, req Request) (*Response, error) {
	conv := req.Conversation
	if conv == nil {
		conv = &models.Conversation{}
	}

	el := p.quota.CheckEligibility(ctx, req.UserID, req.Tier, req.UserQuery, conv.GameTitle, req.ReleaseEpoch)

	conv = p.summarizer.Apply(ctx, conv)

	bd := p.behavior.GetBehaviorData(ctx, req.UserID)
	bc := behaviorContext(bd, conv.GameTitle)

	system := prompt.BuildSystemPrompt(prompt.Request{
		Conversation:    conv,
		UserQuery:       req.UserQuery,
		Profile:         req.Profile,
		ProfileOverride: req.ProfileOverride,
		IsActiveSession: req.IsActiveSession,
		UseGrounding:    el.UseGrounding,
		QueryType:       el.QueryType,
		Behavior:        bc,
		Interaction:     req.Interaction,
		Timezone:        req.Timezone,
	})

	history := make([]models.Message, 0, len(conv.Messages)+2)
	history = append(history, conv.Messages...)
	history = append(history, models.Message{
		Role:      models.RoleUser,
		Content:   req.UserQuery,
		Timestamp: p.now(),
	})

	raw, err := p.completer.Complete(ctx, system, history)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	parsed := p.parser.Parse(raw)

	next := applyDirectives(conv, parsed.Directives)
	next.Messages = append(history, models.Message{
		Role:      models.RoleAssistant,
		Content:   parsed.CleanContent,
		Timestamp: p.now(),
	})

	if el.UseGrounding {
		p.quota.RecordUsage(ctx, req.UserID)
	}

	p.recordTopics(ctx, req.UserID, next.GameTitle, discussedTopics(parsed.Directives))
	if bc != nil {
		for _, c := range bc.ActiveCorrections {
			p.behavior.IncrementCorrectionApplied(ctx, req.UserID, c.ID)
		}
	}

	p.logger.Debug("pipeline_cycle",
		zap.String("user_id", req.UserID),
		zap.String("query_type", string(el.QueryType)),
		zap.Bool("use_grounding", el.UseGrounding),
		zap.Int("directive_count", parsed.Directives.Len()),
		zap.Int("message_count", len(next.Messages)),
	)

	return &Response{
		CleanContent: parsed.CleanContent,
		Directives:   parsed.Directives,
		Conversation: next,
		Grounding:    el,
	}, nil
}

// behaviorContext assembles the prompt-facing view of stored behavior data
// for the bound game, honoring the user's preferences: the history scope
// picks which topic cache bucket feeds the prompt (or none), and
// corrections are only injected when the user has them switched on.
func behaviorContext(bd *models.BehaviorData, gameTitle string) *models.BehaviorContext {
	if bd == nil {
		return nil
	}
	bc := &models.BehaviorContext{}
	switch bd.AIPreferences.ResponseHistoryScope {
	case models.HistoryScopeOff:
	case models.HistoryScopeGlobal:
		bc.PreviousTopics = bd.ResponseTopicsCache[models.GlobalTopicsKey]
	default:
		bc.PreviousTopics = bd.ResponseTopicsCache[topicsScopeKey(gameTitle)]
	}
	if bd.AIPreferences.ApplyCorrections {
		bc.ActiveCorrections = bd.ActiveCorrectionsFor(gameTitle)
	}
	return bc
}

func topicsScopeKey(gameTitle string) string {
	if gameTitle == "" {
		return models.GlobalTopicsKey
	}
	return gameTitle
}

// discussedTopics derives the "recently discussed" entries for the topic
// cache from what the response actually covered: subtab titles, the new
// objective and any triumph. Follow-up suggestions are prompts for the
// user's next question, not discussed content, so they are excluded.
func discussedTopics(set *models.DirectiveSet) []string {
	if set == nil {
		return nil
	}
	topics := make([]string, 0, len(set.SubtabUpdates)+2)
	for _, su := range set.SubtabUpdates {
		if su.Title != "" {
			topics = append(topics, su.Title)
		}
	}
	if set.Objective != "" {
		topics = append(topics, set.Objective)
	}
	if set.ObjectiveSet != "" && set.ObjectiveSet != set.Objective {
		topics = append(topics, set.ObjectiveSet)
	}
	if set.Triumph != "" {
		topics = append(topics, set.Triumph)
	}
	return topics
}

func (p *Pipeline) recordTopics(ctx context.Context, userID, gameTitle string, topics []string) {
	if len(topics) == 0 {
		return
	}
	if err := p.behavior.AddResponseTopics(ctx, userID, topicsScopeKey(gameTitle), topics); err != nil {
		p.logger.Warn("failed to record response topics",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

// applyDirectives applies conversation-state directives from one parsed
// response to a copy of the conversation. Progress never moves backward
// from a directive; downward corrections come only from explicit user
// action outside this path.
func applyDirectives(conv *models.Conversation, set *models.DirectiveSet) *models.Conversation {
	next := *conv
	next.Subtabs = append([]models.Subtab(nil), conv.Subtabs...)

	if set == nil {
		return &next
	}

	if set.Has(models.DirectiveGameID) && set.GameID != "" {
		next.GameTitle = set.GameID
	}
	if set.Has(models.DirectiveGenre) && set.Genre != "" {
		next.Genre = set.Genre
	}
	if set.Has(models.DirectiveGameStatus) {
		next.IsUnreleased = strings.EqualFold(set.GameStatus, "unreleased")
	}
	if set.Progress != nil && *set.Progress > next.GameProgress {
		next.GameProgress = *set.Progress
	}
	if set.Has(models.DirectiveObjectiveSet) && set.ObjectiveSet != "" {
		next.ActiveObjective = set.ObjectiveSet
	} else if set.Has(models.DirectiveObjective) && set.Objective != "" {
		next.ActiveObjective = set.Objective
	}

	for _, u := range set.SubtabUpdates {
		applySubtabUpdate(&next, u)
	}
	for _, c := range set.Consolidations {
		applyConsolidation(&next, c)
	}

	return &next
}

func applySubtabUpdate(conv *models.Conversation, u models.SubtabUpdate) {
	for i := range conv.Subtabs {
		if conv.Subtabs[i].ID == u.ID {
			if u.Title != "" {
				conv.Subtabs[i].Title = u.Title
			}
			conv.Subtabs[i].Content = u.Content
			conv.Subtabs[i].Status = models.SubtabStatusLoaded
			return
		}
	}
	conv.Subtabs = append(conv.Subtabs, models.Subtab{
		ID:      u.ID,
		Title:   u.Title,
		Content: u.Content,
		Status:  models.SubtabStatusLoaded,
	})
}

// applyConsolidation folds the source subtabs' content into the target and
// drops the sources. Unknown ids are skipped.
func applyConsolidation(conv *models.Conversation, c models.SubtabConsolidate) {
	target := -1
	for i := range conv.Subtabs {
		if conv.Subtabs[i].ID == c.TargetID {
			target = i
			break
		}
	}
	if target == -1 {
		return
	}

	drop := make(map[string]bool, len(c.SourceIDs))
	var merged strings.Builder
	merged.WriteString(conv.Subtabs[target].Content)
	for _, id := range c.SourceIDs {
		if id == c.TargetID {
			continue
		}
		for i := range conv.Subtabs {
			if conv.Subtabs[i].ID == id {
				if conv.Subtabs[i].Content != "" {
					merged.WriteString("\n\n")
					merged.WriteString(conv.Subtabs[i].Content)
				}
				drop[id] = true
				break
			}
		}
	}

	conv.Subtabs[target].Content = merged.String()
	conv.Subtabs[target].Status = models.SubtabStatusLoaded
	if c.Title != "" {
		conv.Subtabs[target].Title = c.Title
	}

	kept := conv.Subtabs[:0]
	for _, st := range conv.Subtabs {
		if !drop[st.ID] {
			kept = append(kept, st)
		}
	}
	conv.Subtabs = kept
}
