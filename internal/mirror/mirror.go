// Package mirror keeps a local, read-only copy of one remote collection,
// replaced wholesale on every snapshot the store delivers.
package mirror

import (
	"context"
	"fmt"

	"github.com/dimitrije/teamtasks-api/internal/apperrors"
	"github.com/dimitrije/teamtasks-api/internal/reactor"
	"github.com/dimitrije/teamtasks-api/internal/store"
	"go.uber.org/zap"
)

// Decoder turns a stored document into a typed value. A decode error
// keeps the document out of the mirror.
type Decoder[T any] func(id string, data []byte) (T, error)

// Mirror is loop-confined: every method except Open must run on the
// reactor loop that was passed to Open.
type Mirror[T any] struct {
	key      Key
	registry *Registry
	sub      store.Subscription
	decode   Decoder[T]
	onChange func()
	log      *zap.SugaredLogger

	docs   []T
	index  map[string]int
	loaded bool
	err    error
	closed bool
}

// Open subscribes to collection and returns a mirror whose value follows
// the store. onChange runs on the loop after every applied snapshot or
// error.
func Open[T any](
	ctx context.Context,
	registry *Registry,
	st store.Store,
	loop *reactor.Loop,
	collection string,
	filter *store.Filter,
	decode Decoder[T],
	log *zap.SugaredLogger,
	onChange func(),
) (*Mirror[T], error) {
	key := KeyOf(collection, filter)
	if err := registry.acquire(key); err != nil {
		return nil, err
	}

	sub, err := st.Subscribe(ctx, collection, filter)
	if err != nil {
		registry.release(key)
		return nil, &apperrors.ReadError{Collection: collection, Filter: key.Filter, Err: err}
	}

	if onChange == nil {
		onChange = func() {}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	m := &Mirror[T]{
		key:      key,
		registry: registry,
		sub:      sub,
		decode:   decode,
		onChange: onChange,
		log:      log.With("mirror", key.String()),
		index:    map[string]int{},
	}

	go func() {
		for snap := range sub.Snapshots() {
			if !loop.Post(func() { m.apply(snap) }) {
				return
			}
		}
	}()

	return m, nil
}

func (m *Mirror[T]) apply(snap store.Snapshot) {
	if m.closed {
		return
	}
	if snap.Err != nil {
		m.err = &apperrors.ReadError{Collection: m.key.Collection, Filter: m.key.Filter, Err: snap.Err}
		m.log.Warnw("mirror degraded, keeping last snapshot", "error", snap.Err, "docs", len(m.docs))
		m.onChange()
		return
	}

	docs := make([]T, 0, len(snap.Docs))
	index := make(map[string]int, len(snap.Docs))
	for _, d := range snap.Docs {
		v, err := m.decode(d.ID, d.Data)
		if err != nil {
			m.log.Warnw("skipping malformed document", "id", d.ID, "error", err)
			continue
		}
		index[d.ID] = len(docs)
		docs = append(docs, v)
	}

	m.docs = docs
	m.index = index
	m.loaded = true
	m.onChange()
}

// Docs returns the current value in delivery order. Callers must not
// modify the returned slice.
func (m *Mirror[T]) Docs() []T {
	return m.docs
}

func (m *Mirror[T]) Get(id string) (T, bool) {
	i, ok := m.index[id]
	if !ok {
		var zero T
		return zero, false
	}
	return m.docs[i], true
}

// Loaded reports whether a first snapshot has arrived.
func (m *Mirror[T]) Loaded() bool {
	return m.loaded
}

// Err is the degraded-data signal; nil while the channel is healthy.
func (m *Mirror[T]) Err() error {
	return m.err
}

func (m *Mirror[T]) Key() Key {
	return m.key
}

// Close releases the store channel and discards the local copy. No
// reaction touches the mirror after Close returns.
func (m *Mirror[T]) Close() {
	if m.closed {
		return
	}
	m.closed = true
	m.sub.Close()
	m.registry.release(m.key)
	m.docs = nil
	m.index = map[string]int{}
	m.loaded = false
}

func (m *Mirror[T]) String() string {
	return fmt.Sprintf("mirror(%s, %d docs)", m.key, len(m.docs))
}
