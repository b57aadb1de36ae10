package mirror

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dimitrije/teamtasks-api/internal/store"
)

var ErrAlreadyOpen = errors.New("mirror already open")

// Key identifies a mirror by collection and filter.
type Key struct {
	Collection string
	Filter     string
}

func KeyOf(collection string, filter *store.Filter) Key {
	return Key{Collection: collection, Filter: filter.String()}
}

func (k Key) String() string {
	if k.Filter == "" {
		return k.Collection
	}
	return k.Collection + " where " + k.Filter
}

// Registry tracks which (collection, filter) pairs are currently open so
// that each store channel is held by exactly one mirror.
type Registry struct {
	mu   sync.Mutex
	open map[Key]struct{}
}

func NewRegistry() *Registry {
	return &Registry{open: make(map[Key]struct{})}
}

func (r *Registry) acquire(k Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.open[k]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyOpen, k)
	}
	r.open[k] = struct{}{}
	return nil
}

func (r *Registry) release(k Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.open, k)
}

// Open reports how many mirrors are currently held.
func (r *Registry) Open() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.open)
}
