package tags

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/otakon/companion/internal/models"
	"go.uber.org/zap"
)

const directivePrefix = "[OTAKON_"

// Result is the outcome of parsing one raw AI response: the prose with all
// directive spans removed, plus the typed directive set.
type Result struct {
	CleanContent string
	Directives   *models.DirectiveSet
}

// Parser extracts [OTAKON_<KEY>: payload] directives from AI free text.
// Parse never fails: malformed directive bodies are skipped with a
// diagnostic log and parsing continues.
type Parser struct {
	logger *zap.Logger
}

// NewParser creates a parser. logger may be nil.
func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

// Progress extraction fallbacks, tried in priority order after the exact
// tag form. First match wins.
var progressFallbacks = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bPROGRESS:\s*(\d{1,3})\s*%?`),
	regexp.MustCompile(`(?i)\b(?:progress|completion)\b[^0-9%]{0,40}?(?:approximately\s+|about\s+|around\s+)?(\d{1,3})\s*%`),
	regexp.MustCompile(`"progress"\s*:\s*(\d{1,3})`),
}

// greetingRe matches the self-introduction sentence some responses open
// with; it is stripped as a presentation normalization step.
var greetingRe = regexp.MustCompile(`(?i)^\s*(?:hi|hey|hello|greetings)[^.!\n]{0,80}(?:otakon|gaming companion|here to help)[^.!\n]{0,80}[.!]\s*`)

var keyRe = regexp.MustCompile(`^[A-Z][A-Z_]*$`)

// Parse scans rawText for directives, removes their spans, and returns the
// cleaned prose plus the typed directive set.
func (p *Parser) Parse(rawText string) *Result {
	set := &models.DirectiveSet{}
	var clean strings.Builder
	rest := rawText

	for {
		idx := strings.Index(rest, directivePrefix)
		if idx < 0 {
			clean.WriteString(rest)
			break
		}
		clean.WriteString(rest[:idx])

		key, payload, consumed, ok := scanDirective(rest[idx:])
		if !ok {
			// Unterminated or misshapen opener; keep the literal text and
			// move past the prefix so scanning can continue.
			clean.WriteString(rest[idx : idx+len(directivePrefix)])
			rest = rest[idx+len(directivePrefix):]
			continue
		}
		rest = rest[idx+consumed:]

		if err := p.apply(set, models.DirectiveKey(key), payload); err != nil {
			p.logger.Debug("directive_skipped",
				zap.String("key", key),
				zap.String("reason", err.Error()),
			)
		}
	}

	// Progress fallback scan on the original text when no exact tag matched.
	if !set.Has(models.DirectiveProgress) {
		if v, ok := scanProgressFallback(rawText); ok {
			set.Progress = &v
			set.MarkPresent(models.DirectiveProgress)
		}
	}

	return &Result{
		CleanContent: normalizeProse(clean.String()),
		Directives:   set,
	}
}

// scanDirective parses one directive starting at the "[OTAKON_" prefix.
// It returns the key, the payload, and the number of bytes consumed.
// Bracket depth is tracked so JSON-array payloads containing ']' do not
// terminate the directive early.
func scanDirective(s string) (key, payload string, consumed int, ok bool) {
	body := s[len(directivePrefix):]
	colon := strings.Index(body, ":")
	if colon < 0 {
		return "", "", 0, false
	}
	key = body[:colon]
	if !keyRe.MatchString(key) {
		return "", "", 0, false
	}

	depth := 1 // the opening '[' of the directive itself
	for i := colon + 1; i < len(body); i++ {
		switch body[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				payload = strings.TrimSpace(body[colon+1 : i])
				consumed = len(directivePrefix) + i + 1
				return key, payload, consumed, true
			}
		}
	}
	return "", "", 0, false
}

// apply decodes a payload into the directive set. A returned error means
// the directive was skipped; it is never propagated past the parser.
func (p *Parser) apply(set *models.DirectiveSet, key models.DirectiveKey, payload string) error {
	switch key {
	case models.DirectiveGameID:
		set.GameID = payload
	case models.DirectiveConfidence:
		set.Confidence = strings.ToLower(payload)
	case models.DirectiveGenre:
		set.Genre = payload
	case models.DirectiveGameStatus:
		set.GameStatus = strings.ToLower(payload)
	case models.DirectiveObjective:
		set.Objective = payload
	case models.DirectiveObjectiveSet:
		set.ObjectiveSet = payload
	case models.DirectiveTriumph:
		set.Triumph = payload

	case models.DirectiveProgress:
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(payload), "%"))
		if err != nil {
			return errMalformed("progress payload is not a number")
		}
		v := clampProgress(n)
		set.Progress = &v

	case models.DirectiveSuggestions:
		var items []string
		if err := json.Unmarshal([]byte(normalizeQuotes(payload)), &items); err != nil {
			return errMalformed("suggestions payload is not a string array")
		}
		set.Suggestions = items

	case models.DirectiveSubtabUpdate:
		var upd models.SubtabUpdate
		if err := json.Unmarshal([]byte(normalizeQuotes(payload)), &upd); err != nil {
			return errMalformed("subtab update payload is not valid JSON")
		}
		// Repeated SUBTAB_UPDATE directives accumulate rather than overwrite.
		set.SubtabUpdates = append(set.SubtabUpdates, upd)

	case models.DirectiveSubtabConsolidate:
		var con models.SubtabConsolidate
		if err := json.Unmarshal([]byte(normalizeQuotes(payload)), &con); err != nil {
			return errMalformed("subtab consolidate payload is not valid JSON")
		}
		set.Consolidations = append(set.Consolidations, con)

	case models.DirectiveInsightUpdate:
		raw, err := rawJSON(payload)
		if err != nil {
			return errMalformed("insight update payload is not valid JSON")
		}
		set.InsightUpdates = append(set.InsightUpdates, raw)

	case models.DirectiveInsightModify:
		raw, err := rawJSON(payload)
		if err != nil {
			return errMalformed("insight modify payload is not valid JSON")
		}
		set.InsightModify = append(set.InsightModify, raw)

	case models.DirectiveInsightDelete:
		set.InsightDeletes = append(set.InsightDeletes, payload)

	default:
		return errMalformed("unknown directive key")
	}

	set.MarkPresent(key)
	return nil
}

func rawJSON(payload string) (json.RawMessage, error) {
	normalized := normalizeQuotes(payload)
	var probe any
	if err := json.Unmarshal([]byte(normalized), &probe); err != nil {
		return nil, err
	}
	return json.RawMessage(normalized), nil
}

// scanProgressFallback runs the looser progress regexes in priority order
// against the raw text. First match wins.
func scanProgressFallback(text string) (int, bool) {
	for _, re := range progressFallbacks {
		if m := re.FindStringSubmatch(text); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			return clampProgress(n), true
		}
	}
	return 0, false
}

func clampProgress(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

// normalizeQuotes converts single-quoted JSON-like literals to valid JSON.
// Quotes inside already-double-quoted strings are left alone.
func normalizeQuotes(s string) string {
	if !strings.Contains(s, "'") {
		return s
	}
	var b strings.Builder
	inDouble := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			if i == 0 || s[i-1] != '\\' {
				inDouble = !inDouble
			}
			b.WriteByte(c)
		case '\'':
			if inDouble {
				b.WriteByte(c)
			} else {
				b.WriteByte('"')
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

var blankRunRe = regexp.MustCompile(`\n{3,}`)
var spaceRunRe = regexp.MustCompile(`[ \t]{2,}`)

func normalizeProse(s string) string {
	s = greetingRe.ReplaceAllString(s, "")
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	s = spaceRunRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

type errMalformed string

func (e errMalformed) Error() string { return string(e) }
