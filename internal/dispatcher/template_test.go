package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderSubstitutesPlaceholders(t *testing.T) {
	got := render("Hi {{name}}, your order {{order_id}} shipped.", map[string]string{
		"name":     "Jess",
		"order_id": "A-42",
	})
	require.Equal(t, "Hi Jess, your order A-42 shipped.", got)
}

func TestRenderLeavesUnmatchedPlaceholdersVerbatim(t *testing.T) {
	got := render("Hi {{name}}, {{missing}} token.", map[string]string{"name": "Jess"})
	require.Equal(t, "Hi Jess, {{missing}} token.", got)
}

func TestRenderNoopWithoutContext(t *testing.T) {
	got := render("no placeholders here", nil)
	require.Equal(t, "no placeholders here", got)
}
