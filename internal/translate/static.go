package translate

import (
	"context"
	"fmt"
	"strings"
)

// Static answers from a fixed table keyed by source text. Lookups ignore
// case and surrounding space. Unknown text is an error, so the renderer
// falls back to the original.
type Static map[string]string

// Translate implements reportcard.Translator.
func (s Static) Translate(_ context.Context, text, _, _ string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(text))
	for k, v := range s {
		if strings.ToLower(strings.TrimSpace(k)) == key {
			return v, nil
		}
	}
	return "", fmt.Errorf("no translation for %q", text)
}
