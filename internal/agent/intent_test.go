package agent

import "testing"

func TestInferIntent(t *testing.T) {
	cases := []struct {
		name             string
		input            string
		awaitingQuantity bool
		want             HandlerDecision
	}{
		{"empty input", "", false, HandlerAskGeneric},
		{"pay keyword", "I'd like to pay now", false, HandlerPay},
		{"checkout phrase", "ready to checkout", false, HandlerPay},
		{"bare number while awaiting quantity", "3", true, HandlerQuantity},
		{"bare number while not awaiting quantity", "3", false, HandlerSelect},
		{"quantity keyword", "how many can I get", false, HandlerQuantity},
		{"ordinal selection", "I'll take the second one", false, HandlerSelect},
		{"browse phrase", "show me your products", false, HandlerBrowse},
		{"unrelated small talk", "good morning", false, HandlerAskGeneric},
		{"pay wins over quantity keyword", "how many to pay", false, HandlerPay},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := inferIntent(tc.input, tc.awaitingQuantity)
			if got != tc.want {
				t.Fatalf("inferIntent(%q, %v) = %q, want %q", tc.input, tc.awaitingQuantity, got, tc.want)
			}
		})
	}
}

func TestLooksLikeQuantity(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"", false},
		{"5", true},
		{"42", true},
		{"five", false},
		{"5 please", false},
	}

	for _, tc := range cases {
		if got := looksLikeQuantity(tc.input); got != tc.want {
			t.Fatalf("looksLikeQuantity(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}
