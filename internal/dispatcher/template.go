package dispatcher

import "strings"

// render substitutes `{{key}}` tokens in content from ctx. Unmatched
// placeholders are left verbatim rather than silently dropped, so a missing
// context key is visible in the rendered output instead of producing a
// confident-looking gap.
func render(content string, ctx map[string]string) string {
	if len(ctx) == 0 {
		return content
	}
	pairs := make([]string, 0, len(ctx)*2)
	for k, v := range ctx {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(content)
}
