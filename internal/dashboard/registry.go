package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dimitrije/teamtasks-api/internal/auth"
	"github.com/dimitrije/teamtasks-api/internal/store"
	"github.com/dimitrije/teamtasks-api/internal/view"
)

var (
	ErrRegistryClosed = errors.New("dashboard registry closed")
	ErrSignedOut      = errors.New("signed out while the dashboard was starting")
)

// entry is published in the registry before its dashboard is built, so
// concurrent requests for the same user wait on ready instead of building
// a second one. dash, session and err are set before ready is closed.
type entry struct {
	ready   chan struct{}
	dash    *Dashboard
	session *auth.Session
	err     error
}

func (e *entry) built() bool {
	select {
	case <-e.ready:
		return e.err == nil
	default:
		return false
	}
}

// Registry keeps one dashboard per signed-in user, each bound to its own
// auth session. Dashboards are built outside the lock, so one user's slow
// store never holds up another user.
type Registry struct {
	ctx    context.Context
	store  store.Store
	opts   Options
	onView func(userID string, v view.View)

	mu     sync.Mutex
	boards map[string]*entry
	closed bool
}

// NewRegistry creates dashboards that live until ctx is done or the user
// signs out. onView receives every view pushed by any dashboard.
func NewRegistry(ctx context.Context, st store.Store, opts Options, onView func(userID string, v view.View)) *Registry {
	if onView == nil {
		onView = func(string, view.View) {}
	}
	return &Registry{
		ctx:    ctx,
		store:  st,
		opts:   opts,
		onView: onView,
		boards: make(map[string]*entry),
	}
}

// Board returns the dashboard of p, starting and signing it in on first
// use.
func (r *Registry) Board(ctx context.Context, p auth.Principal) (Board, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	if e, ok := r.boards[p.UID]; ok {
		r.mu.Unlock()
		select {
		case <-e.ready:
			if e.err != nil {
				return nil, e.err
			}
			return e.dash, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	e := &entry{ready: make(chan struct{})}
	r.boards[p.UID] = e
	r.mu.Unlock()

	d, sess, err := r.open(ctx, p)

	r.mu.Lock()
	if err == nil && r.boards[p.UID] != e {
		err = ErrSignedOut
		if r.closed {
			err = ErrRegistryClosed
		}
		defer func() { _ = r.teardown(ctx, d, sess) }()
	}
	if err != nil {
		if r.boards[p.UID] == e {
			delete(r.boards, p.UID)
		}
		e.err = err
		close(e.ready)
		r.mu.Unlock()
		return nil, err
	}
	e.dash, e.session = d, sess
	close(e.ready)
	r.mu.Unlock()
	return d, nil
}

func (r *Registry) open(ctx context.Context, p auth.Principal) (*Dashboard, *auth.Session, error) {
	sess := auth.NewSession()
	opts := r.opts
	uid := p.UID
	opts.OnView = func(v view.View) { r.onView(uid, v) }
	if opts.Log != nil {
		opts.Log = opts.Log.With("user_id", uid)
	}

	d := New(r.store, sess, opts)
	if err := d.Start(r.ctx); err != nil {
		sess.Close()
		return nil, nil, err
	}
	if err := sess.SignIn(ctx, p); err != nil {
		_ = r.teardown(ctx, d, sess)
		return nil, nil, fmt.Errorf("failed to sign in: %w", err)
	}
	if err := d.awaitSession(ctx, p.UID); err != nil {
		_ = r.teardown(ctx, d, sess)
		return nil, nil, fmt.Errorf("failed to start session: %w", err)
	}
	return d, sess, nil
}

// SignOut drives the user's session to signed-out, then discards the
// dashboard. Unknown users are a no-op.
func (r *Registry) SignOut(ctx context.Context, userID string) error {
	r.mu.Lock()
	e, ok := r.boards[userID]
	delete(r.boards, userID)
	built := ok && e.built()
	r.mu.Unlock()

	// a dashboard still starting is torn down by its builder
	if !built {
		return nil
	}
	err := e.dash.SignOut(ctx)
	if cerr := r.teardown(ctx, e.dash, e.session); err == nil {
		err = cerr
	}
	return err
}

// Active returns the number of live or starting dashboards.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.boards)
}

// Close discards every dashboard.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	boards := r.boards
	r.boards = make(map[string]*entry)
	r.closed = true
	r.mu.Unlock()

	var errs []error
	for _, e := range boards {
		if !e.built() {
			continue
		}
		if err := r.teardown(ctx, e.dash, e.session); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) teardown(ctx context.Context, d *Dashboard, sess *auth.Session) error {
	err := d.Close(ctx)
	sess.Close()
	return err
}
