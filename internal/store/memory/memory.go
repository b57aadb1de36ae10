// Package memory is an in-process document store with push snapshots.
// It backs local development and the state-core tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/dimitrije/teamtasks-api/internal/store"
	"github.com/google/uuid"
)

// WriteHook is consulted before every write. A non-nil error fails the
// write without touching state.
type WriteHook func(op, collection, id string) error

type Store struct {
	mu          sync.Mutex
	collections map[string]map[string]map[string]any
	subs        map[*subscription]struct{}
	hook        WriteHook
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		collections: make(map[string]map[string]map[string]any),
		subs:        make(map[*subscription]struct{}),
	}
}

func (s *Store) OnWrite(hook WriteHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
}

func (s *Store) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	doc, err := normalize(fields)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hook != nil {
		if err := s.hook("add", collection, id); err != nil {
			return "", err
		}
	}
	s.collection(collection)[id] = doc
	s.publishLocked(collection)
	return id, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	patch, err := normalize(fields)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hook != nil {
		if err := s.hook("set", collection, id); err != nil {
			return err
		}
	}
	docs := s.collection(collection)
	doc, ok := docs[id]
	if !ok {
		doc = make(map[string]any, len(patch))
	} else {
		doc = maps.Clone(doc)
	}
	maps.Copy(doc, patch)
	docs[id] = doc
	s.publishLocked(collection)
	return nil
}

// Get returns the current fields of a document as JSON.
func (s *Store) Get(collection, id string) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, false
	}
	data, _ := json.Marshal(doc)
	return data, true
}

// Fail terminates every open subscription on collection with err, the way
// a dropped store channel would.
func (s *Store) Fail(collection string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs {
		if sub.collection != collection {
			continue
		}
		delete(s.subs, sub)
		sub.offer(store.Snapshot{Err: err})
	}
}

func (s *Store) Subscribe(ctx context.Context, collection string, filter *store.Filter) (store.Subscription, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	sub := &subscription{
		collection: collection,
		filter:     filter,
		out:        make(chan store.Snapshot),
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	sub.detach = func() {
		s.mu.Lock()
		delete(s.subs, sub)
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	sub.offer(s.snapshotLocked(collection, filter))
	s.mu.Unlock()

	go sub.pump()
	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()

	return sub, nil
}

func (s *Store) collection(name string) map[string]map[string]any {
	docs, ok := s.collections[name]
	if !ok {
		docs = make(map[string]map[string]any)
		s.collections[name] = docs
	}
	return docs
}

func (s *Store) publishLocked(collection string) {
	for sub := range s.subs {
		if sub.collection == collection {
			sub.offer(s.snapshotLocked(collection, sub.filter))
		}
	}
}

func (s *Store) snapshotLocked(collection string, filter *store.Filter) store.Snapshot {
	docs := s.collections[collection]
	ids := slices.Sorted(maps.Keys(docs))

	out := make([]store.Document, 0, len(ids))
	for _, id := range ids {
		if !filter.Match(docs[id]) {
			continue
		}
		data, err := json.Marshal(docs[id])
		if err != nil {
			continue
		}
		out = append(out, store.Document{ID: id, Data: data})
	}
	return store.Snapshot{Docs: out}
}

// normalize round-trips fields through JSON so stored values have the
// same shapes a decoder would see ([]any, float64, nil).
func normalize(fields map[string]any) (map[string]any, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fields: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode fields: %w", err)
	}
	if out == nil {
		out = make(map[string]any)
	}
	return out, nil
}

// subscription conflates: only the newest undelivered snapshot is kept,
// which is safe because every snapshot is a total replacement.
type subscription struct {
	collection string
	filter     *store.Filter
	out        chan store.Snapshot
	wake       chan struct{}
	done       chan struct{}
	stopped    chan struct{}
	detach     func()
	closeOnce  sync.Once

	mu      sync.Mutex
	pending *store.Snapshot
}

func (sub *subscription) Snapshots() <-chan store.Snapshot {
	return sub.out
}

func (sub *subscription) Close() {
	sub.closeOnce.Do(func() {
		sub.detach()
		close(sub.done)
		<-sub.stopped
	})
}

func (sub *subscription) offer(snap store.Snapshot) {
	sub.mu.Lock()
	sub.pending = &snap
	sub.mu.Unlock()

	select {
	case sub.wake <- struct{}{}:
	default:
	}
}

func (sub *subscription) pump() {
	defer close(sub.stopped)
	defer close(sub.out)

	for {
		select {
		case <-sub.done:
			return
		case <-sub.wake:
		}

		sub.mu.Lock()
		snap := sub.pending
		sub.pending = nil
		sub.mu.Unlock()
		if snap == nil {
			continue
		}

		select {
		case sub.out <- *snap:
		case <-sub.done:
			return
		}
		if snap.Err != nil {
			return
		}
	}
}
