package tokens

import (
	"context"
	"fmt"

	"github.com/dekaandassociates/booking-relay/internal/supabase"
)

// SupabaseStore reads tokens through the Supabase REST API.
type SupabaseStore struct {
	client *supabase.Client
}

func NewSupabaseStore(client *supabase.Client) *SupabaseStore {
	return &SupabaseStore{client: client}
}

func (s *SupabaseStore) AdminTokens(ctx context.Context) ([]string, error) {
	var rows []struct {
		Token *string `json:"token"`
	}
	if err := s.client.Select(ctx, Table, "token", &rows); err != nil {
		return nil, fmt.Errorf("failed to fetch admin tokens: %w", err)
	}

	raw := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.Token != nil {
			raw = append(raw, *row.Token)
		}
	}

	return normalize(raw), nil
}
