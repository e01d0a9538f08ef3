package agent

import "strings"

// defaultLanguage is used when neither a lock nor the detector can place
// the input in a known language.
const defaultLanguage = "en"

// languageMarkers is a small keyword-frequency detector over the
// languages this platform ships fixture copy for. It is not a general
// language-identification model — no such library appears anywhere in the
// corpus this platform is built from — just enough to pick a greeting
// language and to notice when a customer has switched.
var languageMarkers = map[string][]string{
	"es": {"hola", "gracias", "quiero", "cuanto", "cuesta", "por favor", "precio", "si"},
	"pt": {"ola", "obrigado", "obrigada", "quero", "quanto", "custa", "por favor", "preco"},
	"fr": {"bonjour", "merci", "je veux", "combien", "coute", "s'il vous plait", "prix"},
}

// detectLanguage scores the input against each known language's marker
// words and returns the best match, or defaultLanguage if nothing scores.
func detectLanguage(input string) string {
	normalized := strings.ToLower(input)
	best := ""
	bestScore := 0
	for lang, markers := range languageMarkers {
		score := 0
		for _, m := range markers {
			if strings.Contains(normalized, m) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = lang
		}
	}
	if bestScore == 0 {
		return defaultLanguage
	}
	return best
}

// resolveLanguage maintains a conversation's locked language once set;
// otherwise it detects and locks it from this turn's input.
func resolveLanguage(lockedLanguage, input string) (language string, lockChanged bool) {
	if lockedLanguage != "" {
		return lockedLanguage, false
	}
	return detectLanguage(input), true
}
