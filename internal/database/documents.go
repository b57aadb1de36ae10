package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dimitrije/teamtasks-api/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrNoListener = errors.New("database has no listener connection")

// DocumentStore keeps every collection in one JSONB table. All
// subscriptions share one LISTEN connection and re-read the full matching
// set on each change notification for their collection.
type DocumentStore struct {
	db       *DB
	log      *zap.SugaredLogger
	notifier *notifier
}

var _ store.Store = (*DocumentStore)(nil)

func NewDocumentStore(db *DB, log *zap.SugaredLogger) *DocumentStore {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &DocumentStore{
		db:       db,
		log:      log,
		notifier: &notifier{db: db, log: log, subs: make(map[*subscription]struct{})},
	}
}

func (s *DocumentStore) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}

	id := uuid.NewString()
	_, err = s.db.Pool.Exec(ctx, `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, $3::jsonb)
	`, collection, id, string(data))
	if err != nil {
		return "", fmt.Errorf("failed to insert document: %w", err)
	}
	return id, nil
}

// Set merges top-level fields into the document. Fields not named keep
// their stored values.
func (s *DocumentStore) Set(ctx context.Context, collection, id string, fields map[string]any) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	_, err = s.db.Pool.Exec(ctx, `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id)
		DO UPDATE SET data = documents.data || EXCLUDED.data, updated_at = NOW()
	`, collection, id, string(data))
	if err != nil {
		return fmt.Errorf("failed to merge document: %w", err)
	}
	return nil
}

// Snapshot reads every document of collection matching filter, ordered by
// id.
func (s *DocumentStore) Snapshot(ctx context.Context, collection string, filter *store.Filter) ([]store.Document, error) {
	query := `SELECT id, data FROM documents WHERE collection = $1`
	args := []any{collection}
	if filter != nil {
		containment, err := containment(filter)
		if err != nil {
			return nil, err
		}
		query += ` AND data @> $2::jsonb`
		args = append(args, containment)
	}
	query += ` ORDER BY id`

	rows, err := s.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	docs := []store.Document{}
	for rows.Next() {
		var (
			id   string
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, store.Document{ID: id, Data: json.RawMessage(data)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}
	return docs, nil
}

// containment renders a filter as a JSONB containment pattern:
// {"field": "value"} for equality, {"field": ["value"]} for
// array-contains.
func containment(f *store.Filter) (string, error) {
	if err := f.Validate(); err != nil {
		return "", err
	}
	var v any = f.Value
	if f.Op == store.OpArrayContains {
		v = []string{f.Value}
	}
	data, err := json.Marshal(map[string]any{f.Field: v})
	if err != nil {
		return "", fmt.Errorf("failed to encode filter: %w", err)
	}
	return string(data), nil
}

func (s *DocumentStore) Subscribe(ctx context.Context, collection string, filter *store.Filter) (store.Subscription, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if s.db.Connect == nil {
		return nil, ErrNoListener
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		store:      s,
		collection: collection,
		filter:     filter,
		out:        make(chan store.Snapshot, 1),
		wake:       make(chan struct{}, 1),
		failed:     make(chan error, 1),
		ctx:        subCtx,
		cancel:     cancel,
		done:       make(chan struct{}),
		log:        s.log.With("collection", collection, "filter", filter.String()),
	}
	if err := s.notifier.register(ctx, sub); err != nil {
		cancel()
		return nil, err
	}
	go sub.run()
	return sub, nil
}

type subscription struct {
	store      *DocumentStore
	collection string
	filter     *store.Filter
	out        chan store.Snapshot
	wake       chan struct{}
	failed     chan error
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	closeOnce  sync.Once
	log        *zap.SugaredLogger
}

func (sub *subscription) Snapshots() <-chan store.Snapshot {
	return sub.out
}

func (sub *subscription) Close() {
	sub.closeOnce.Do(func() {
		sub.cancel()
		<-sub.done
	})
}

func (sub *subscription) run() {
	defer close(sub.done)
	defer close(sub.out)
	defer sub.store.notifier.unregister(sub)

	if !sub.refresh() {
		return
	}
	for {
		select {
		case <-sub.ctx.Done():
			return
		case err := <-sub.failed:
			sub.offer(store.Snapshot{Err: fmt.Errorf("listener failed: %w", err)})
			return
		case <-sub.wake:
			if !sub.refresh() {
				return
			}
		}
	}
}

// refresh re-reads the matching set and offers it. It reports false once
// the subscription is over.
func (sub *subscription) refresh() bool {
	docs, err := sub.store.Snapshot(sub.ctx, sub.collection, sub.filter)
	if err != nil {
		if sub.ctx.Err() != nil {
			return false
		}
		sub.log.Errorw("snapshot query failed", "error", err)
		sub.offer(store.Snapshot{Err: err})
		return false
	}
	return sub.offer(store.Snapshot{Docs: docs})
}

// offer replaces any undelivered snapshot with snap.
func (sub *subscription) offer(snap store.Snapshot) bool {
	for {
		select {
		case <-sub.ctx.Done():
			return false
		case sub.out <- snap:
			return true
		default:
		}
		select {
		case <-sub.out:
		default:
		}
	}
}
