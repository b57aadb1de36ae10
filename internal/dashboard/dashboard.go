// Package dashboard composes the mirrors, the session resolver, the view
// and the mutation coordinator of one signed-in user on a single loop.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dimitrije/teamtasks-api/internal/apperrors"
	"github.com/dimitrije/teamtasks-api/internal/auth"
	"github.com/dimitrije/teamtasks-api/internal/mirror"
	"github.com/dimitrije/teamtasks-api/internal/models"
	"github.com/dimitrije/teamtasks-api/internal/mutation"
	"github.com/dimitrije/teamtasks-api/internal/reactor"
	"github.com/dimitrije/teamtasks-api/internal/sanitize"
	"github.com/dimitrije/teamtasks-api/internal/session"
	"github.com/dimitrije/teamtasks-api/internal/store"
	"github.com/dimitrije/teamtasks-api/internal/view"
	"go.uber.org/zap"
)

// Board is what the HTTP layer drives for one user.
type Board interface {
	View(ctx context.Context, search *string) (view.View, error)
	SetSearch(ctx context.Context, q string) error
	Users(ctx context.Context) ([]models.User, error)
	CreateTeam(ctx context.Context, name string, memberIDs []string) (string, error)
	CreateTask(ctx context.Context, in mutation.NewTask) (string, error)
	ToggleAssignment(ctx context.Context, taskID, userID string) ([]string, error)
	ToggleStatus(ctx context.Context, taskID string) (models.TaskStatus, error)
	RepairReferences(ctx context.Context, teamID string, userIDs []string) error
}

type Options struct {
	WriteTimeout time.Duration
	LoopBuffer   int
	Sanitizer    sanitize.Sanitizer
	Log          *zap.SugaredLogger
	// OnView runs on the loop after every change with the freshly derived
	// view. It must not block.
	OnView func(view.View)
}

type waiter struct {
	userID string
	done   chan struct{}
}

type Dashboard struct {
	loop      *reactor.Loop
	store     store.Store
	source    auth.Source
	registry  *mirror.Registry
	resolver  *session.Resolver
	coord     *mutation.Coordinator
	sanitizer sanitize.Sanitizer
	log       *zap.SugaredLogger
	onView    func(view.View)
	cancel    context.CancelFunc

	// loop-confined
	users    *mirror.Mirror[models.User]
	tasks    *mirror.Mirror[models.Task]
	search   string
	reported map[string]bool
	waiters  []waiter
}

var _ Board = (*Dashboard)(nil)

func New(st store.Store, source auth.Source, opts Options) *Dashboard {
	if opts.LoopBuffer <= 0 {
		opts.LoopBuffer = 64
	}
	if opts.Sanitizer == nil {
		opts.Sanitizer = sanitize.New()
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop().Sugar()
	}
	if opts.OnView == nil {
		opts.OnView = func(view.View) {}
	}

	d := &Dashboard{
		loop:      reactor.New(opts.LoopBuffer, opts.Log),
		store:     st,
		source:    source,
		registry:  mirror.NewRegistry(),
		sanitizer: opts.Sanitizer,
		log:       opts.Log,
		onView:    opts.OnView,
		reported:  map[string]bool{},
	}
	d.resolver = session.NewResolver(d.loop, st, d.registry, source, opts.Log, d.changed)
	d.coord = mutation.NewCoordinator(d.loop, st, reader{d}, opts.WriteTimeout, opts.Log)
	return d
}

// Start runs the loop, opens the user and task mirrors and begins
// following the auth source. ctx bounds the dashboard's lifetime.
func (d *Dashboard) Start(ctx context.Context) error {
	ctx, d.cancel = context.WithCancel(ctx)
	go d.loop.Run(ctx)

	var openErr error
	err := d.loop.Do(ctx, func() {
		d.users, openErr = mirror.Open(ctx, d.registry, d.store, d.loop, store.Users, nil, models.DecodeUser, d.log, d.changed)
		if openErr != nil {
			return
		}
		d.tasks, openErr = mirror.Open(ctx, d.registry, d.store, d.loop, store.Tasks, nil, models.DecodeTask, d.log, d.changed)
		if openErr != nil {
			d.users.Close()
		}
	})
	if err == nil {
		err = openErr
	}
	if err != nil {
		d.cancel()
		return fmt.Errorf("failed to start dashboard: %w", err)
	}

	d.resolver.Start(ctx)
	return nil
}

// Close tears down every mirror and stops the loop.
func (d *Dashboard) Close(ctx context.Context) error {
	if d.cancel == nil {
		return nil
	}
	err := d.loop.Do(ctx, func() {
		d.resolver.Close()
		if d.users != nil {
			d.users.Close()
		}
		if d.tasks != nil {
			d.tasks.Close()
		}
		for _, w := range d.waiters {
			close(w.done)
		}
		d.waiters = nil
	})
	d.cancel()
	<-d.loop.Stopped()
	if errors.Is(err, reactor.ErrStopped) {
		return nil
	}
	return err
}

// SignOut ends the auth session and waits until the dashboard has
// observed it.
func (d *Dashboard) SignOut(ctx context.Context) error {
	if err := d.source.SignOut(ctx); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	return d.awaitSession(ctx, "")
}

// awaitSession blocks until the resolver reports userID as the session
// user, "" meaning no session.
func (d *Dashboard) awaitSession(ctx context.Context, userID string) error {
	done := make(chan struct{})
	err := d.loop.Do(ctx, func() {
		if d.sessionUser() == userID {
			close(done)
			return
		}
		d.waiters = append(d.waiters, waiter{userID: userID, done: done})
	})
	if err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dashboard) sessionUser() string {
	if s := d.resolver.State().Session; s != nil {
		return s.UserID
	}
	return ""
}

func (d *Dashboard) changed() {
	v := d.derive(d.search)

	if v.ActiveTeam != nil {
		for _, id := range v.MissingMembers {
			key := v.ActiveTeam.ID + "/" + id
			if !d.reported[key] {
				d.reported[key] = true
				d.log.Warnw("team member has no user document", "team_id", v.ActiveTeam.ID, "user_id", id)
			}
		}
	}

	if len(d.waiters) > 0 {
		uid := d.sessionUser()
		d.waiters = slices.DeleteFunc(d.waiters, func(w waiter) bool {
			if w.userID != uid {
				return false
			}
			close(w.done)
			return true
		})
	}

	d.onView(v)
}

func (d *Dashboard) derive(search string) view.View {
	st := d.resolver.State()
	in := view.Input{
		Session:     st.Session,
		Teams:       st.Teams,
		TeamsLoaded: st.Status == session.StatusReady,
		Assigned:    st.Assigned,
		Search:      search,
	}

	degraded := st.Degraded
	if d.users != nil {
		in.Users = d.users.Docs()
		if err := d.users.Err(); err != nil {
			degraded = append(degraded, err)
		}
	}
	if d.tasks != nil {
		in.Tasks = d.tasks.Docs()
		if err := d.tasks.Err(); err != nil {
			degraded = append(degraded, err)
		}
	}
	for _, err := range degraded {
		var rerr *apperrors.ReadError
		if errors.As(err, &rerr) && !slices.Contains(in.Degraded, rerr.Collection) {
			in.Degraded = append(in.Degraded, rerr.Collection)
		}
	}

	return view.Derive(in, d.sanitizer)
}

// View derives the current view. A nil search uses the stored search slot.
func (d *Dashboard) View(ctx context.Context, search *string) (view.View, error) {
	var v view.View
	err := d.loop.Do(ctx, func() {
		q := d.search
		if search != nil {
			q = *search
		}
		v = d.derive(q)
	})
	return v, err
}

// SetSearch replaces the search slot and pushes a fresh view.
func (d *Dashboard) SetSearch(ctx context.Context, q string) error {
	return d.loop.Do(ctx, func() {
		d.search = q
		d.changed()
	})
}

func (d *Dashboard) Users(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := d.loop.Do(ctx, func() {
		if d.users != nil {
			users = slices.Clone(d.users.Docs())
		}
	})
	return users, err
}

func (d *Dashboard) CreateTeam(ctx context.Context, name string, memberIDs []string) (string, error) {
	return d.coord.CreateTeam(ctx, name, memberIDs)
}

func (d *Dashboard) CreateTask(ctx context.Context, in mutation.NewTask) (string, error) {
	return d.coord.CreateTask(ctx, in)
}

func (d *Dashboard) ToggleAssignment(ctx context.Context, taskID, userID string) ([]string, error) {
	return d.coord.ToggleAssignment(ctx, taskID, userID)
}

func (d *Dashboard) ToggleStatus(ctx context.Context, taskID string) (models.TaskStatus, error) {
	return d.coord.ToggleStatus(ctx, taskID)
}

func (d *Dashboard) RepairReferences(ctx context.Context, teamID string, userIDs []string) error {
	return d.coord.RepairReferences(ctx, teamID, userIDs)
}

// reader serves the coordinator's read phase from the mirrors.
type reader struct {
	d *Dashboard
}

func (r reader) Session() *session.Session {
	s := r.d.resolver.State().Session
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

func (r reader) ActiveTeam() *models.Team {
	return r.d.resolver.State().Active
}

func (r reader) Task(id string) (models.Task, bool) {
	if r.d.tasks == nil {
		return models.Task{}, false
	}
	return r.d.tasks.Get(id)
}
