package contact

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dekaandassociates/booking-relay/internal/supabase"
)

// Store persists contact submissions.
type Store interface {
	Save(ctx context.Context, s *Submission) error
}

// PostgresStore writes submissions with a direct database connection.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Save(ctx context.Context, s *Submission) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO `+Table+` (name, email, phone, service, message, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		s.Name, s.Email, s.Phone, s.Service, s.Message, s.SubmittedAt)
	if err != nil {
		return fmt.Errorf("failed to insert contact submission: %w", err)
	}
	return nil
}

// SupabaseStore writes submissions through the Supabase REST API.
type SupabaseStore struct {
	client *supabase.Client
}

func NewSupabaseStore(client *supabase.Client) *SupabaseStore {
	return &SupabaseStore{client: client}
}

func (p *SupabaseStore) Save(ctx context.Context, s *Submission) error {
	if err := p.client.Insert(ctx, Table, []*Submission{s}); err != nil {
		return fmt.Errorf("failed to insert contact submission: %w", err)
	}
	return nil
}
