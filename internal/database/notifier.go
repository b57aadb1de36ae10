package database

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// notifier owns the single LISTEN connection of a DocumentStore. It is
// opened by the first subscription, closed when the last one leaves, and
// wakes every subscription registered for the notified collection.
type notifier struct {
	db  *DB
	log *zap.SugaredLogger

	mu     sync.Mutex
	conn   Listener
	cancel context.CancelFunc
	done   chan struct{}
	subs   map[*subscription]struct{}
}

func (n *notifier) register(ctx context.Context, sub *subscription) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.conn == nil {
		conn, err := n.db.Connect(ctx)
		if err != nil {
			return fmt.Errorf("failed to open listener: %w", err)
		}
		if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
			_ = conn.Close(context.Background())
			return fmt.Errorf("failed to listen: %w", err)
		}
		listenCtx, cancel := context.WithCancel(context.Background())
		n.conn = conn
		n.cancel = cancel
		n.done = make(chan struct{})
		go n.listen(listenCtx, conn, n.done)
	}
	n.subs[sub] = struct{}{}
	return nil
}

// unregister drops sub and, when it was the last one, closes the
// connection before returning.
func (n *notifier) unregister(sub *subscription) {
	n.mu.Lock()
	delete(n.subs, sub)
	if len(n.subs) > 0 || n.conn == nil {
		n.mu.Unlock()
		return
	}
	cancel, done := n.cancel, n.done
	n.conn, n.cancel, n.done = nil, nil, nil
	n.mu.Unlock()

	cancel()
	<-done
}

func (n *notifier) listen(ctx context.Context, conn Listener, done chan struct{}) {
	defer close(done)
	defer func() {
		if err := conn.Close(context.Background()); err != nil {
			n.log.Warnw("failed to close listener", "error", err)
		}
	}()

	for {
		note, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() == nil {
				n.log.Errorw("listener failed", "error", err)
				n.fail(conn, err)
			}
			return
		}
		n.dispatch(note.Payload)
	}
}

func (n *notifier) dispatch(collection string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for sub := range n.subs {
		if sub.collection != collection {
			continue
		}
		select {
		case sub.wake <- struct{}{}:
		default:
		}
	}
}

// fail detaches a broken connection and ends every subscription that was
// using it. The next Subscribe opens a fresh one.
func (n *notifier) fail(conn Listener, err error) {
	n.mu.Lock()
	if n.conn != conn {
		n.mu.Unlock()
		return
	}
	subs, cancel := n.subs, n.cancel
	n.conn, n.cancel, n.done = nil, nil, nil
	n.subs = make(map[*subscription]struct{})
	n.mu.Unlock()

	cancel()
	for sub := range subs {
		select {
		case sub.failed <- err:
		default:
		}
	}
}
