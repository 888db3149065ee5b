package storage

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dgellow/minidp/internal/log"
)

var _ Store = (*FirestoreStore)(nil)
var _ Expirer = (*FirestoreStore)(nil)

// FirestoreStore keeps one document per key in a collection.
// Document IDs are the path-escaped key; the raw key is stored in a field
// so prefix listing can use a range query.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	now        func() time.Time
}

// KVDoc is the document layout
type KVDoc struct {
	Key       string    `firestore:"key"`
	Value     string    `firestore:"value"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

// NewFirestoreStore creates a Firestore-backed store
func NewFirestoreStore(ctx context.Context, projectID, database, collection string) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required")
	}
	if collection == "" {
		return nil, fmt.Errorf("collection is required")
	}

	var client *firestore.Client
	var err error

	if database != "" && database != "(default)" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, database)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	log.LogInfoWithFields("storage", "Connected to Firestore", map[string]any{
		"project":    projectID,
		"database":   database,
		"collection": collection,
	})

	return &FirestoreStore{client: client, collection: collection, now: time.Now}, nil
}

func docID(key string) string {
	return url.PathEscape(key)
}

func (s *FirestoreStore) Get(ctx context.Context, key string) (string, error) {
	doc, err := s.client.Collection(s.collection).Doc(docID(key)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get key from Firestore: %w", err)
	}

	var kv KVDoc
	if err := doc.DataTo(&kv); err != nil {
		return "", fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return kv.Value, nil
}

func (s *FirestoreStore) Set(ctx context.Context, key, value string) error {
	kv := KVDoc{Key: key, Value: value, UpdatedAt: s.now()}
	if _, err := s.client.Collection(s.collection).Doc(docID(key)).Set(ctx, kv); err != nil {
		return fmt.Errorf("failed to store key in Firestore: %w", err)
	}
	return nil
}

func (s *FirestoreStore) Delete(ctx context.Context, key string) error {
	if _, err := s.client.Collection(s.collection).Doc(docID(key)).Delete(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return fmt.Errorf("failed to delete key from Firestore: %w", err)
	}
	return nil
}

func (s *FirestoreStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	q := s.client.Collection(s.collection).Query
	if prefix != "" {
		q = q.Where("key", ">=", prefix).Where("key", "<", prefix+"\uf8ff")
	}
	iter := q.Documents(ctx)
	defer iter.Stop()

	var keys []string
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate keys: %w", err)
		}

		var kv KVDoc
		if err := doc.DataTo(&kv); err != nil {
			log.LogError("Failed to unmarshal key document: %v", err)
			continue
		}
		keys = append(keys, kv.Key)
	}
	return keys, nil
}

func (s *FirestoreStore) DeleteOlderThan(ctx context.Context, age time.Duration) (int, error) {
	iter := s.client.Collection(s.collection).Where("updated_at", "<", s.now().Add(-age)).Documents(ctx)
	defer iter.Stop()

	n := 0
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return n, fmt.Errorf("failed to iterate stale keys: %w", err)
		}
		if _, err := doc.Ref.Delete(ctx); err != nil {
			log.LogError("Failed to delete stale key document %s: %v", doc.Ref.ID, err)
			continue
		}
		n++
	}
	return n, nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
