package agent

import "testing"

func TestDetectLanguage(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"Hola, cuanto cuesta esto?", "es"},
		{"Ola, quanto custa isso?", "pt"},
		{"Bonjour, combien ca coute?", "fr"},
		{"hi, how much is this?", "en"},
		{"", "en"},
	}

	for _, tc := range cases {
		if got := detectLanguage(tc.input); got != tc.want {
			t.Fatalf("detectLanguage(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestResolveLanguage(t *testing.T) {
	lang, changed := resolveLanguage("es", "hello there")
	if lang != "es" || changed {
		t.Fatalf("locked language should win unchanged, got (%q, %v)", lang, changed)
	}

	lang, changed = resolveLanguage("", "Hola, gracias")
	if lang != "es" || !changed {
		t.Fatalf("expected detection to lock es, got (%q, %v)", lang, changed)
	}
}
