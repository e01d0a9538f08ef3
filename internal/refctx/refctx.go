// Package refctx resolves deictic references ("1", "the second one", "that
// one", "the blue one") against the short-TTL lists the agent most recently
// showed a customer.
package refctx

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tulia-commerce/convoapi/internal/domain"
)

// Store is the narrow persistence contract refctx needs; store.ReferenceStore
// satisfies it structurally.
type Store interface {
	Create(ctx context.Context, rc domain.ReferenceContext) error
	LiveForConversation(ctx context.Context, conversationID uuid.UUID, now time.Time) ([]domain.ReferenceContext, error)
}

// Outcome classifies a resolution attempt by its failure mode.
type Outcome string

const (
	OutcomeResolved    Outcome = "resolved"
	OutcomeNoLiveList  Outcome = "no_live_list"
	OutcomeAmbiguous   Outcome = "ambiguous"
	OutcomeNotResolved Outcome = "not_resolved"
)

// Result is the outcome of one resolution attempt.
type Result struct {
	Outcome   Outcome
	Item      *domain.ReferenceItem
	ContextID uuid.UUID
}

// Manager registers enumerated lists and resolves later references against
// them.
type Manager struct {
	store Store
}

// New builds a Manager.
func New(store Store) *Manager {
	return &Manager{store: store}
}

// Register persists a new reference context for a list the agent just
// showed the customer.
func (m *Manager) Register(ctx context.Context, conversationID uuid.UUID, listType domain.ReferenceListType, items []domain.ReferenceItem, now time.Time) error {
	rc := domain.NewReferenceContext(conversationID, listType, items, now)
	return m.store.Create(ctx, rc)
}

var ordinals = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"1st": 1, "2nd": 2, "3rd": 3, "4th": 4, "5th": 5,
}

var demonstratives = []string{"this one", "that one", "this", "that"}

var numberPattern = regexp.MustCompile(`\b(\d+)\b`)

// Resolve applies a fixed resolution order — numeric, ordinal,
// demonstrative, descriptive — against the conversation's live reference
// contexts as of `now`.
func (m *Manager) Resolve(ctx context.Context, conversationID uuid.UUID, phrase string, now time.Time) (Result, error) {
	live, err := m.store.LiveForConversation(ctx, conversationID, now)
	if err != nil {
		return Result{}, err
	}
	if len(live) == 0 {
		return Result{Outcome: OutcomeNoLiveList}, nil
	}

	normalized := strings.ToLower(strings.TrimSpace(phrase))

	if idx, ok := numericIndex(normalized); ok {
		return resolveByIndex(live, idx), nil
	}
	if idx, ok := ordinalIndex(normalized); ok {
		return resolveByIndex(live, idx), nil
	}
	if isDemonstrative(normalized) {
		return resolveDemonstrative(live), nil
	}
	return resolveDescriptive(live, normalized), nil
}

func numericIndex(phrase string) (int, bool) {
	m := numberPattern.FindStringSubmatch(phrase)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func ordinalIndex(phrase string) (int, bool) {
	if strings.Contains(phrase, "last") {
		return -1, true
	}
	for word, idx := range ordinals {
		if strings.Contains(phrase, word) {
			return idx, true
		}
	}
	return 0, false
}

// resolveByIndex implements "select by 1-based index in the most recent
// compatible list" — live is ordered most-recent-first, so the first list
// containing a valid index wins, with no ambiguity check across lists.
func resolveByIndex(live []domain.ReferenceContext, idx int) Result {
	for _, rc := range live {
		pos := idx
		if idx == -1 {
			pos = len(rc.Items)
		}
		if pos < 1 || pos > len(rc.Items) {
			continue
		}
		item := rc.Items[pos-1]
		return Result{Outcome: OutcomeResolved, Item: &item, ContextID: rc.ID}
	}
	return Result{Outcome: OutcomeNotResolved}
}

func isDemonstrative(phrase string) bool {
	for _, d := range demonstratives {
		if strings.Contains(phrase, d) {
			return true
		}
	}
	return false
}

// resolveDemonstrative binds to the single most recent list only when it is
// unambiguous: more than one live list, or more than one item in the most
// recent list, leaves no single referent to bind "this one" to.
func resolveDemonstrative(live []domain.ReferenceContext) Result {
	if len(live) > 1 {
		return Result{Outcome: OutcomeAmbiguous}
	}
	rc := live[0]
	if len(rc.Items) != 1 {
		return Result{Outcome: OutcomeAmbiguous}
	}
	item := rc.Items[0]
	return Result{Outcome: OutcomeResolved, Item: &item, ContextID: rc.ID}
}

// resolveDescriptive matches phrase tokens against item attribute values
// (case-insensitive substring) across every live list.
func resolveDescriptive(live []domain.ReferenceContext, phrase string) Result {
	var match *domain.ReferenceItem
	var matchContext uuid.UUID
	ambiguous := false

	for _, rc := range live {
		for i := range rc.Items {
			item := rc.Items[i]
			for _, attrValue := range item.Attributes {
				if attrValue == "" {
					continue
				}
				if strings.Contains(phrase, strings.ToLower(attrValue)) {
					if match != nil && match.EntityID != item.EntityID {
						ambiguous = true
					}
					match = &item
					matchContext = rc.ID
				}
			}
		}
	}

	if ambiguous {
		return Result{Outcome: OutcomeAmbiguous}
	}
	if match == nil {
		return Result{Outcome: OutcomeNotResolved}
	}
	return Result{Outcome: OutcomeResolved, Item: match, ContextID: matchContext}
}
