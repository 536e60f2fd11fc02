package document

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/automerge/automerge-go"

	"github.com/dyluth/mural/pkg/board"
)

// RemoteOrigin marks change sets that arrived through peer synchronization
// rather than a local transaction. It never matches a session token, so
// remote changes are always applied.
const RemoteOrigin = "remote"

// subscriberBuffer is the per-subscriber event buffer. A subscriber that
// falls this far behind starts losing events and is told so on its error
// channel (at-most-once delivery, matching Redis pub/sub semantics).
const subscriberBuffer = 32

// AutomergeStore is a Store backed by an automerge CRDT document. Each board
// object is one entry in the document's root map: key = object ID, value =
// the whole-object JSON text. Whole-value replacement rides on automerge's
// native last-write-wins register semantics, so no field merging happens.
//
// Local transactions become one automerge commit and one ChangeSet. Changes
// received from peers via sync messages are detected by diffing the root map
// around the merge and announced with RemoteOrigin.
type AutomergeStore struct {
	mu     sync.Mutex
	doc    *automerge.Doc
	subs   map[int]*storeSub
	nextID int
	closed bool
}

type storeSub struct {
	events chan *ChangeSet
	errors chan error
}

// NewAutomergeStore creates an empty document store.
func NewAutomergeStore() *AutomergeStore {
	return &AutomergeStore{
		doc:  automerge.New(),
		subs: map[int]*storeSub{},
	}
}

// LoadAutomergeStore restores a store from a saved document snapshot.
func LoadAutomergeStore(snapshot []byte) (*AutomergeStore, error) {
	doc, err := automerge.Load(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to load document snapshot: %w", err)
	}
	return &AutomergeStore{
		doc:  doc,
		subs: map[int]*storeSub{},
	}, nil
}

// Get returns the whole-value JSON for an object ID.
func (s *AutomergeStore) Get(ctx context.Context, id string) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.doc.RootMap().Get(id)
	if err != nil {
		return nil, fmt.Errorf("failed to read document key %s: %w", id, err)
	}
	if v.Kind() == automerge.KindVoid {
		return nil, board.ErrNotFound
	}

	text, err := automerge.As[string](v)
	if err != nil {
		return nil, fmt.Errorf("document key %s holds a non-string value: %w", id, err)
	}
	return json.RawMessage(text), nil
}

// List returns every entry in the document.
func (s *AutomergeStore) List(ctx context.Context) (map[string]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked()
}

func (s *AutomergeStore) listLocked() (map[string]json.RawMessage, error) {
	values, err := s.doc.RootMap().Values()
	if err != nil {
		return nil, fmt.Errorf("failed to list document values: %w", err)
	}

	out := make(map[string]json.RawMessage, len(values))
	for id, v := range values {
		text, err := automerge.As[string](v)
		if err != nil {
			return nil, fmt.Errorf("document key %s holds a non-string value: %w", id, err)
		}
		out[id] = json.RawMessage(text)
	}
	return out, nil
}

// Count returns the number of live entries.
func (s *AutomergeStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.RootMap().Len(), nil
}

// Apply performs one atomic transaction: all puts and deletes become a single
// automerge commit and a single ChangeSet delivered to every subscriber.
func (s *AutomergeStore) Apply(ctx context.Context, tx Tx) error {
	if tx.Empty() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	m := s.doc.RootMap()
	for id, raw := range tx.Puts {
		if err := m.Set(id, string(raw)); err != nil {
			return fmt.Errorf("failed to set document key %s: %w", id, err)
		}
	}
	for _, id := range tx.Deletes {
		if err := m.Delete(id); err != nil {
			return fmt.Errorf("failed to delete document key %s: %w", id, err)
		}
	}

	if _, err := s.doc.Commit(tx.Origin); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.emitLocked(&ChangeSet{
		Origin:  tx.Origin,
		Puts:    tx.Puts,
		Deletes: tx.Deletes,
	})
	return nil
}

// Subscribe starts delivering ChangeSets for every subsequent transaction and
// remote merge. Delivery is buffered; a subscriber that cannot keep up loses
// events and receives an error instead.
func (s *AutomergeStore) Subscribe(ctx context.Context) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	sub := &storeSub{
		events: make(chan *ChangeSet, subscriberBuffer),
		errors: make(chan error, subscriberBuffer),
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = sub

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub.events)
				close(sub.errors)
			}
		})
	}

	stop := context.AfterFunc(ctx, cancel)
	return NewSubscription(sub.events, sub.errors, func() {
		stop()
		cancel()
	}), nil
}

// Close tears down all subscriptions. The in-memory document remains readable
// until the store is garbage collected, but no further writes are accepted.
func (s *AutomergeStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for id, sub := range s.subs {
		delete(s.subs, id)
		close(sub.events)
		close(sub.errors)
	}
	return nil
}

func (s *AutomergeStore) emitLocked(cs *ChangeSet) {
	for _, sub := range s.subs {
		select {
		case sub.events <- cs:
		default:
			select {
			case sub.errors <- fmt.Errorf("subscriber too slow, dropped change set"):
			default:
			}
		}
	}
}

// Save returns a snapshot of the document suitable for persistence or for
// seeding a new peer.
func (s *AutomergeStore) Save() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Save()
}

// SyncState tracks what one peer is known to have. The transport holds one
// per connection and threads it through the Generate/Receive calls below.
type SyncState = automerge.SyncState

// NewSyncState creates a per-peer sync state for this document.
func (s *AutomergeStore) NewSyncState() *automerge.SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return automerge.NewSyncState(s.doc)
}

// GenerateSyncMessage produces the next sync message for a peer, if any.
func (s *AutomergeStore) GenerateSyncMessage(ss *automerge.SyncState) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, valid := ss.GenerateMessage()
	if msg == nil {
		return nil, false
	}
	return msg.Bytes(), valid
}

// ReceiveSyncMessage merges a peer's sync message into the document. Any keys
// the merge added, changed or removed are announced to subscribers as one
// ChangeSet with RemoteOrigin.
func (s *AutomergeStore) ReceiveSyncMessage(ss *automerge.SyncState, msg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before, err := s.listLocked()
	if err != nil {
		return err
	}

	if _, err := ss.ReceiveMessage(msg); err != nil {
		return fmt.Errorf("failed to receive sync message: %w", err)
	}

	after, err := s.listLocked()
	if err != nil {
		return err
	}

	cs := diffEntries(before, after)
	if cs != nil {
		s.emitLocked(cs)
	}
	return nil
}

// diffEntries computes the ChangeSet between two document snapshots.
// Returns nil when nothing changed (for example when a sync message only
// echoed back our own writes).
func diffEntries(before, after map[string]json.RawMessage) *ChangeSet {
	cs := &ChangeSet{Origin: RemoteOrigin, Puts: map[string]json.RawMessage{}}

	for id, val := range after {
		if prev, ok := before[id]; !ok || string(prev) != string(val) {
			cs.Puts[id] = val
		}
	}
	for id := range before {
		if _, ok := after[id]; !ok {
			cs.Deletes = append(cs.Deletes, id)
		}
	}

	if len(cs.Puts) == 0 && len(cs.Deletes) == 0 {
		return nil
	}
	return cs
}
