package tokens

import (
	"context"
	"strings"
)

// Table is where admin devices register their push tokens.
const Table = "admin_fcm_tokens"

// Store looks up the push tokens of every registered admin device.
// An empty result is not an error.
type Store interface {
	AdminTokens(ctx context.Context) ([]string, error)
}

// normalize trims tokens and drops blanks and duplicates, keeping first-seen order.
func normalize(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))

	for _, token := range raw {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}

	return out
}
