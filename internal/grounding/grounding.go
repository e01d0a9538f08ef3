// Package grounding validates an outbound agent response against the
// tenant's catalog, services, and knowledge base before dispatch, and
// strips content that can't be verified.
package grounding

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MaxSentences and MaxListItems are the hard limits this sets.
const (
	MaxSentences = 6
	MaxListItems = 5
)

// ValidationLog records every transformation the validator makes, for
// observability.
type ValidationLog interface {
	Record(ctx context.Context, tenantID, conversationID uuid.UUID, transform, detail string) error
}

// Claim is an extracted factual statement awaiting verification.
type Claim struct {
	Kind  ClaimKind
	Text  string // the exact substring matched, so it can be located and stripped
	Value string // the normalized value (e.g. a price string) used for lookup
}

// ClaimKind tags what a Claim asserts.
type ClaimKind string

const (
	ClaimPrice        ClaimKind = "price"
	ClaimAvailability ClaimKind = "availability"
)

// Fact is something the validator already knows to be true for this turn —
// a price or an availability statement pulled from the catalog/knowledge
// retrieval the orchestrator already ran.
type Fact struct {
	Kind  ClaimKind
	Value string
}

var (
	pricePattern        = regexp.MustCompile(`\$\s?\d+(\.\d{2})?`)
	availabilityPattern = regexp.MustCompile(`(?i)\b(in stock|out of stock|available|unavailable|sold out)\b`)
)

// ExtractClaims finds price and availability statements in a draft response.
func ExtractClaims(text string) []Claim {
	var claims []Claim
	for _, m := range pricePattern.FindAllString(text, -1) {
		claims = append(claims, Claim{Kind: ClaimPrice, Text: m, Value: normalizePrice(m)})
	}
	for _, m := range availabilityPattern.FindAllString(text, -1) {
		claims = append(claims, Claim{Kind: ClaimAvailability, Text: m, Value: strings.ToLower(m)})
	}
	return claims
}

func normalizePrice(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$")), " ", "")
}

// disclaimerPhrases are confidence-undermining clichés stripped on sight.
var disclaimerPhrases = []string{
	"as an ai",
	"i'm just a bot",
	"i cannot guarantee",
	"please note that i may be wrong",
	"to the best of my knowledge",
}

const deferralText = "Let me check and get back to you on that."

// Validator runs the grounding pipeline over one draft response.
type Validator struct {
	log ValidationLog
	out zerolog.Logger
}

// New builds a Validator.
func New(log ValidationLog, out zerolog.Logger) *Validator {
	return &Validator{log: log, out: out}
}

// Validate checks every extracted claim against known facts, strips
// disclaimer/echo phrases, and enforces the sentence/list-item caps. It
// returns the possibly-rewritten response.
func (v *Validator) Validate(ctx context.Context, tenantID, conversationID uuid.UUID, draft, customerInput string, facts []Fact) string {
	text := draft

	for _, claim := range ExtractClaims(text) {
		if !verifiable(claim, facts) {
			text = strings.Replace(text, claim.Text, "", 1)
			v.record(ctx, tenantID, conversationID, "strip_unverified_claim", claim.Text)
		}
	}

	for _, phrase := range disclaimerPhrases {
		if idx := strings.Index(strings.ToLower(text), phrase); idx >= 0 {
			text = removeCaseInsensitive(text, phrase)
			v.record(ctx, tenantID, conversationID, "strip_disclaimer", phrase)
		}
	}

	if echoed := findEcho(text, customerInput); echoed != "" {
		text = strings.Replace(text, echoed, "", 1)
		v.record(ctx, tenantID, conversationID, "strip_echo", echoed)
	}

	text = enforceSentenceLimit(text, MaxSentences)
	text = enforceListItemLimit(text, MaxListItems)

	text = strings.Join(strings.Fields(text), " ")
	text = strings.TrimSpace(text)
	if text == "" {
		text = deferralText
		v.record(ctx, tenantID, conversationID, "deferral_fallback", "")
	}
	return text
}

func verifiable(claim Claim, facts []Fact) bool {
	for _, f := range facts {
		if f.Kind == claim.Kind && f.Value == claim.Value {
			return true
		}
	}
	return false
}

func removeCaseInsensitive(text, phrase string) string {
	lower := strings.ToLower(text)
	idx := strings.Index(lower, phrase)
	if idx < 0 {
		return text
	}
	return text[:idx] + text[idx+len(phrase):]
}

// findEcho reports a verbatim repetition of a meaningful chunk of the
// customer's input (10+ characters) inside the draft response, if any.
func findEcho(draft, customerInput string) string {
	trimmed := strings.TrimSpace(customerInput)
	if len(trimmed) < 10 {
		return ""
	}
	if strings.Contains(draft, trimmed) {
		return trimmed
	}
	return ""
}

func enforceSentenceLimit(text string, max int) string {
	sentences := splitSentences(text)
	if len(sentences) <= max {
		return text
	}
	return strings.Join(sentences[:max], " ")
}

func splitSentences(text string) []string {
	raw := regexp.MustCompile(`(?:[.!?]+\s+|[.!?]+$)`).Split(text, -1)
	var out []string
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s+".")
		}
	}
	return out
}

var listItemPattern = regexp.MustCompile(`(?m)^\s*[-*\d]+[.)]\s+.*$`)

func enforceListItemLimit(text string, max int) string {
	lines := strings.Split(text, "\n")
	kept := 0
	var out []string
	for _, line := range lines {
		if listItemPattern.MatchString(line) {
			kept++
			if kept > max {
				continue
			}
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func (v *Validator) record(ctx context.Context, tenantID, conversationID uuid.UUID, transform, detail string) {
	if v.log == nil {
		return
	}
	if err := v.log.Record(ctx, tenantID, conversationID, transform, detail); err != nil {
		v.out.Warn().Err(err).Str("transform", transform).Msg("failed to persist validation log entry")
	}
}
