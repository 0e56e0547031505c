package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoEntry struct {
	Key       string    `bson:"_id"`
	Value     []byte    `bson:"value"`
	ExpiresAt time.Time `bson:"expires_at"`
}

// MongoStore keeps entries as documents in a dedicated collection. A TTL index
// on expires_at lets the server reap expired documents; reads also check
// expiry since the reaper runs only periodically.
type MongoStore struct {
	collection *mongo.Collection
	now        func() time.Time
}

// NewMongoStore creates a store over collection. Call EnsureIndexes once at
// startup.
func NewMongoStore(collection *mongo.Collection) *MongoStore {
	return &MongoStore{collection: collection, now: time.Now}
}

// EnsureIndexes creates the expiry index if it does not exist.
func (m *MongoStore) EnsureIndexes(ctx context.Context) error {
	if m.collection == nil {
		return fmt.Errorf("collection not initialized")
	}
	_, err := m.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return fmt.Errorf("create ttl index: %w", err)
	}
	return nil
}

func (m *MongoStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.collection == nil {
		return nil, fmt.Errorf("collection not initialized")
	}

	var entry mongoEntry
	err := m.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	if !m.now().Before(entry.ExpiresAt) {
		return nil, ErrMiss
	}
	return entry.Value, nil
}

func (m *MongoStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.collection == nil {
		return fmt.Errorf("collection not initialized")
	}

	entry := mongoEntry{Key: key, Value: value, ExpiresAt: m.now().Add(ttl)}
	opts := options.Replace().SetUpsert(true)
	_, err := m.collection.ReplaceOne(ctx, bson.M{"_id": key}, entry, opts)
	return err
}

func (m *MongoStore) Clear(ctx context.Context) error {
	if m.collection == nil {
		return fmt.Errorf("collection not initialized")
	}
	_, err := m.collection.DeleteMany(ctx, bson.M{})
	return err
}
