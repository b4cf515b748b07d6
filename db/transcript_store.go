package db

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/acme-analytics/genie-gateway/db/models"
)

// TranscriptStore persists question/answer exchanges for web app
// conversations so history survives across requests.
type TranscriptStore struct {
	collection *mongo.Collection
}

func NewTranscriptStore(m *Mongo) (*TranscriptStore, error) {
	if m == nil || m.Transcripts == nil {
		return nil, errors.New("mongo transcripts collection is not initialised")
	}
	return &TranscriptStore{collection: m.Transcripts}, nil
}

// EnsureIndexes creates the lookup index used by History.
func (s *TranscriptStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "conversation_id", Value: 1},
			{Key: "created_at", Value: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("create transcript index: %w", err)
	}
	return nil
}

func (s *TranscriptStore) Append(ctx context.Context, entry models.TranscriptEntry) error {
	if _, err := s.collection.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("insert transcript entry: %w", err)
	}
	return nil
}

// History returns a conversation's exchanges in chronological order.
func (s *TranscriptStore) History(ctx context.Context, conversationID string, limit int64) ([]models.TranscriptEntry, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		findOpts = findOpts.SetLimit(limit)
	}

	cursor, err := s.collection.Find(ctx, bson.M{"conversation_id": conversationID}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("query transcript history: %w", err)
	}
	defer cursor.Close(ctx)

	entries := make([]models.TranscriptEntry, 0)
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("decode transcript history: %w", err)
	}

	return entries, nil
}
