package document

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dyluth/mural/pkg/board"
)

// Redis key / channel layout
//
// One document is one Redis hash: field = object ID, value = whole-object
// JSON. Change notifications ride a pub/sub channel carrying one ChangeSet
// JSON message per transaction. Both are namespaced by document name so
// multiple documents can share a Redis server.
//
// Hash:    mural:{document}:objects
// Channel: mural:{document}:changes

// ObjectsKey returns the Redis hash key holding a document's objects.
func ObjectsKey(document string) string {
	return fmt.Sprintf("mural:%s:objects", document)
}

// ChangesChannel returns the pub/sub channel name for a document's change
// notifications.
func ChangesChannel(document string) string {
	return fmt.Sprintf("mural:%s:changes", document)
}

// RedisStore is a Store backed by a Redis hash with pub/sub change fan-out.
// Per-key last-write-wins falls out of HSET replacing the whole field value.
// The store is thread-safe and can be shared across goroutines.
type RedisStore struct {
	rdb      *redis.Client
	document string
}

// NewRedisStore creates a store for the named document.
// Returns an error if the document name is empty.
func NewRedisStore(redisOpts *redis.Options, document string) (*RedisStore, error) {
	if document == "" {
		return nil, fmt.Errorf("document name cannot be empty")
	}
	return &RedisStore{
		rdb:      redis.NewClient(redisOpts),
		document: document,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Get returns the whole-value JSON for an object ID.
func (s *RedisStore) Get(ctx context.Context, id string) (json.RawMessage, error) {
	val, err := s.rdb.HGet(ctx, ObjectsKey(s.document), id).Result()
	if err == redis.Nil {
		return nil, board.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read object from Redis: %w", err)
	}
	return json.RawMessage(val), nil
}

// List returns every entry in the document.
func (s *RedisStore) List(ctx context.Context) (map[string]json.RawMessage, error) {
	raw, err := s.rdb.HGetAll(ctx, ObjectsKey(s.document)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list objects from Redis: %w", err)
	}

	out := make(map[string]json.RawMessage, len(raw))
	for id, val := range raw {
		out[id] = json.RawMessage(val)
	}
	return out, nil
}

// Count returns the number of live entries.
func (s *RedisStore) Count(ctx context.Context) (int, error) {
	n, err := s.rdb.HLen(ctx, ObjectsKey(s.document)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count objects in Redis: %w", err)
	}
	return int(n), nil
}

// Apply performs one atomic transaction via a Redis pipeline, then publishes
// the whole transaction as a single ChangeSet so observers receive exactly
// one notification regardless of item count.
func (s *RedisStore) Apply(ctx context.Context, tx Tx) error {
	if tx.Empty() {
		return nil
	}

	key := ObjectsKey(s.document)
	pipe := s.rdb.TxPipeline()
	if len(tx.Puts) > 0 {
		fields := make(map[string]interface{}, len(tx.Puts))
		for id, raw := range tx.Puts {
			fields[id] = string(raw)
		}
		pipe.HSet(ctx, key, fields)
	}
	if len(tx.Deletes) > 0 {
		pipe.HDel(ctx, key, tx.Deletes...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to apply transaction to Redis: %w", err)
	}

	cs := ChangeSet{Origin: tx.Origin, Puts: tx.Puts, Deletes: tx.Deletes}
	payload, err := json.Marshal(cs)
	if err != nil {
		return fmt.Errorf("failed to marshal change set: %w", err)
	}
	if err := s.rdb.Publish(ctx, ChangesChannel(s.document), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish change set: %w", err)
	}
	return nil
}

// Subscribe starts delivering ChangeSets published for this document.
// Caller must call subscription.Close() when done.
// Context cancellation also stops the subscription.
//
// Events are delivered on a buffered channel to prevent blocking. If the
// subscriber is too slow, events may be dropped by Redis pub/sub
// (at-most-once delivery).
func (s *RedisStore) Subscribe(ctx context.Context) (*Subscription, error) {
	pubsub := s.rdb.Subscribe(ctx, ChangesChannel(s.document))

	eventsChan := make(chan *ChangeSet, subscriberBuffer)
	errorsChan := make(chan error, subscriberBuffer)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var cs ChangeSet
				if err := json.Unmarshal([]byte(msg.Payload), &cs); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal change set: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &cs:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return NewSubscription(eventsChan, errorsChan, cancelFunc), nil
}
