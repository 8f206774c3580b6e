package tokens

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"github.com/dekaandassociates/booking-relay/internal/logger"
	"google.golang.org/api/iterator"
)

// FirestoreStore reads tokens from the admin_fcm_tokens collection. Each document
// holds one device:
//
//	{token: "fcm_token_...", deviceId: "...", lastUpdatedAt: timestamp}
type FirestoreStore struct {
	client *firestore.Client
	logger *logger.Logger
}

func NewFirestoreStore(client *firestore.Client, logger *logger.Logger) *FirestoreStore {
	return &FirestoreStore{client: client, logger: logger}
}

func (s *FirestoreStore) AdminTokens(ctx context.Context) ([]string, error) {
	log := s.logger.WithContext(ctx).WithComponent("token-store")

	iter := s.client.Collection(Table).Select("token").Documents(ctx)
	defer iter.Stop()

	var raw []string
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to fetch admin tokens: %w", err)
		}

		token, ok := doc.Data()["token"].(string)
		if !ok {
			log.Warn("skipping token document with missing token field",
				slog.String("doc_id", doc.Ref.ID))
			continue
		}
		raw = append(raw, token)
	}

	tokens := normalize(raw)
	log.Info("successfully retrieved admin tokens", slog.Int("token_count", len(tokens)))

	return tokens, nil
}
