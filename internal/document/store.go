// Package document abstracts the replicated associative store that holds all
// board objects. The engine core treats it as opaque: a key/value collection
// offering atomic multi-key transactions, per-key last-write-wins at
// whole-value granularity, and a change-notification stream.
//
// Two implementations are provided: AutomergeStore, backed by a CRDT document
// that merges concurrent peers, and RedisStore, backed by a Redis hash with
// pub/sub fan-out for deployments that already run Redis. Both deliver one
// ChangeSet per transaction regardless of how many keys it touched.
package document

import (
	"context"
	"encoding/json"
	"sync"
)

// Tx is one atomic transaction against the store: a set of whole-value puts
// and a set of deletes, applied together and announced as one ChangeSet.
//
// Origin is the writing session's token. It travels with the resulting
// ChangeSet so observers can recognise and skip the echo of their own writes.
type Tx struct {
	Origin  string
	Puts    map[string]json.RawMessage
	Deletes []string
}

// Empty reports whether the transaction would change nothing.
func (tx Tx) Empty() bool {
	return len(tx.Puts) == 0 && len(tx.Deletes) == 0
}

// ChangeSet is one change notification: everything a single transaction (or
// one remote merge) did to the document.
type ChangeSet struct {
	Origin  string                     `json:"origin"`
	Puts    map[string]json.RawMessage `json:"puts,omitempty"`
	Deletes []string                   `json:"deletes,omitempty"`
}

// Store is the replicated associative collection holding all board objects,
// keyed by object ID with whole-value JSON entries.
//
// All operations are synchronous fire-and-continue calls; change delivery is
// asynchronous via Subscribe. Within one session the order local write ->
// local notification is preserved.
type Store interface {
	// Get returns the value for an ID, or board.ErrNotFound.
	Get(ctx context.Context, id string) (json.RawMessage, error)

	// List returns every entry currently in the document.
	List(ctx context.Context) (map[string]json.RawMessage, error)

	// Count returns the number of live entries.
	Count(ctx context.Context) (int, error)

	// Apply performs one atomic transaction and announces it as a single
	// ChangeSet to all subscribers.
	Apply(ctx context.Context, tx Tx) error

	// Subscribe starts delivering ChangeSets. Caller must Close the
	// subscription when done.
	Subscribe(ctx context.Context) (*Subscription, error)

	// Close releases the store's resources.
	Close() error
}

// Subscription is an active change-notification stream.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	events <-chan *ChangeSet
	errors <-chan error
	cancel func()
	once   sync.Once
}

// NewSubscription wraps pre-wired channels into a Subscription. Used by the
// store implementations.
func NewSubscription(events <-chan *ChangeSet, errors <-chan error, cancel func()) *Subscription {
	return &Subscription{events: events, errors: errors, cancel: cancel}
}

// Events returns the channel of change notifications.
// The channel is closed when the subscription closes or its context ends.
func (s *Subscription) Events() <-chan *ChangeSet {
	return s.events
}

// Errors returns the channel of non-fatal subscription errors, such as an
// undecodable notification payload. The stream continues after errors.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}
