package tokens

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore reads tokens straight from the database.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) AdminTokens(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT token FROM `+Table)
	if err != nil {
		return nil, fmt.Errorf("failed to query admin tokens: %w", err)
	}
	defer rows.Close()

	var raw []string
	for rows.Next() {
		var token sql.NullString
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("failed to scan admin token: %w", err)
		}
		if token.Valid {
			raw = append(raw, token.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read admin tokens: %w", err)
	}

	return normalize(raw), nil
}
