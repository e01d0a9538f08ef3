package agent

import "strings"

// HandlerDecision is the handler a turn's intent inference selects: browse,
// select, quantity, pay, or ask_generic.
type HandlerDecision string

const (
	HandlerBrowse     HandlerDecision = "browse"
	HandlerSelect     HandlerDecision = "select"
	HandlerQuantity   HandlerDecision = "quantity"
	HandlerPay        HandlerDecision = "pay"
	HandlerAskGeneric HandlerDecision = "ask_generic"
)

var (
	payKeywords      = []string{"pay", "payment", "checkout", "buy now", "pay now", "complete order"}
	browseKeywords   = []string{"show me", "looking for", "browse", "catalog", "what do you have", "options", "products"}
	selectPattern    = numberOrOrdinalWords
	quantityKeywords = []string{"quantity", "how many", "qty"}
)

var numberOrOrdinalWords = []string{
	"1", "2", "3", "4", "5", "first", "second", "third", "fourth", "fifth",
	"this one", "that one", "i'll take", "i want", "i'll have",
}

// inferIntent classifies one harmonized turn's combined customer input into
// a handler decision. awaitingQuantity disambiguates a bare number between
// "select a catalog item" and "confirm a quantity": it's true only when the
// checkout session is in ProductSelected, the one state a bare integer means
// quantity rather than an index into the last shown list. Intent inference
// runs after the checkout session is loaded, so the current state is
// always known by the time this is called.
func inferIntent(input string, awaitingQuantity bool) HandlerDecision {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return HandlerAskGeneric
	}

	if containsAny(normalized, payKeywords) {
		return HandlerPay
	}

	if awaitingQuantity && looksLikeQuantity(normalized) {
		return HandlerQuantity
	}
	if containsAny(normalized, quantityKeywords) {
		return HandlerQuantity
	}

	if containsAny(normalized, selectPattern) {
		return HandlerSelect
	}

	if containsAny(normalized, browseKeywords) {
		return HandlerBrowse
	}

	return HandlerAskGeneric
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// looksLikeQuantity reports whether the normalized input is just a bare
// positive integer, the shape a "how many would you like?" follow-up gets
// answered with.
func looksLikeQuantity(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
