// Package session turns authentication transitions into the set of
// teams, and assigned tasks, the signed-in user currently belongs to.
package session

import (
	"context"
	"errors"
	"strings"

	"github.com/dimitrije/teamtasks-api/internal/apperrors"
	"github.com/dimitrije/teamtasks-api/internal/auth"
	"github.com/dimitrije/teamtasks-api/internal/mirror"
	"github.com/dimitrije/teamtasks-api/internal/models"
	"github.com/dimitrije/teamtasks-api/internal/reactor"
	"github.com/dimitrije/teamtasks-api/internal/store"
	"go.uber.org/zap"
)

var errNotOpened = errors.New("mirror could not be opened")

type Status int

const (
	StatusNoSession Status = iota
	StatusLoading
	StatusReady
)

func (s Status) String() string {
	switch s {
	case StatusNoSession:
		return "no_session"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	default:
		return "unknown"
	}
}

type Session struct {
	UserID      string
	DisplayName string
}

// State is a read-only copy of what the resolver knows. Slices are shared
// with the mirrors and must not be modified.
type State struct {
	Status    Status
	Session   *Session
	Teams     []models.Team
	Assigned  []models.Task
	Active    *models.Team
	Ambiguous bool
	Degraded  []error
}

// SelectActive picks the working team from the membership-filtered teams:
// none → nil, several → the first in delivery order with ambiguous set.
func SelectActive(teams []models.Team) (active *models.Team, ambiguous bool) {
	if len(teams) == 0 {
		return nil, false
	}
	t := teams[0]
	return &t, len(teams) > 1
}

// Resolver is loop-confined; Start and Close are the only calls made from
// outside the loop.
type Resolver struct {
	loop     *reactor.Loop
	store    store.Store
	registry *mirror.Registry
	source   auth.Source
	log      *zap.SugaredLogger
	onChange func()

	ctx      context.Context
	session  *Session
	teams    *mirror.Mirror[models.Team]
	assigned *mirror.Mirror[models.Task]
	warned   string
}

func NewResolver(loop *reactor.Loop, st store.Store, registry *mirror.Registry, source auth.Source, log *zap.SugaredLogger, onChange func()) *Resolver {
	if onChange == nil {
		onChange = func() {}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Resolver{
		loop:     loop,
		store:    st,
		registry: registry,
		source:   source,
		log:      log,
		onChange: onChange,
	}
}

// Start begins observing the auth source. Every transition becomes one
// reaction on the loop.
func (r *Resolver) Start(ctx context.Context) {
	r.ctx = ctx
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case p, ok := <-r.source.Changes():
				if !ok {
					return
				}
				if !r.loop.Post(func() { r.transition(p) }) {
					return
				}
			}
		}
	}()
}

func (r *Resolver) transition(p *auth.Principal) {
	if p == nil {
		if r.session == nil {
			return
		}
		r.log.Infow("session ended", "user_id", r.session.UserID)
		r.closeMirrors()
		r.session = nil
		r.onChange()
		return
	}

	if r.session != nil && r.session.UserID == p.UID {
		r.session.DisplayName = p.Name()
		r.onChange()
		return
	}

	r.closeMirrors()
	r.session = &Session{UserID: p.UID, DisplayName: p.Name()}
	r.log.Infow("session started", "user_id", p.UID)

	teams, err := mirror.Open(r.context(), r.registry, r.store, r.loop, store.Teams,
		store.ArrayContains("members", p.UID), models.DecodeTeam, r.log, r.teamsChanged)
	if err != nil {
		r.log.Errorw("failed to open team mirror", "user_id", p.UID, "error", err)
	}
	r.teams = teams

	assigned, err := mirror.Open(r.context(), r.registry, r.store, r.loop, store.Tasks,
		store.ArrayContains("assignees", p.UID), models.DecodeTask, r.log, r.onChange)
	if err != nil {
		r.log.Errorw("failed to open assigned task mirror", "user_id", p.UID, "error", err)
	}
	r.assigned = assigned

	r.onChange()
}

func (r *Resolver) teamsChanged() {
	teams := r.teams.Docs()
	if _, ambiguous := SelectActive(teams); ambiguous {
		ids := make([]string, len(teams))
		for i, t := range teams {
			ids[i] = t.ID
		}
		key := strings.Join(ids, ",")
		if key != r.warned {
			r.warned = key
			r.log.Warnw("user belongs to several teams, using the first",
				"user_id", r.session.UserID, "team_ids", ids, "active", ids[0])
		}
	} else {
		r.warned = ""
	}
	r.onChange()
}

func (r *Resolver) context() context.Context {
	if r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

func (r *Resolver) closeMirrors() {
	if r.teams != nil {
		r.teams.Close()
		r.teams = nil
	}
	if r.assigned != nil {
		r.assigned.Close()
		r.assigned = nil
	}
	r.warned = ""
}

// State must be called on the loop.
func (r *Resolver) State() State {
	if r.session == nil {
		return State{Status: StatusNoSession}
	}

	s := State{Session: r.session, Status: StatusLoading}
	if r.teams == nil {
		s.Degraded = append(s.Degraded, &apperrors.ReadError{Collection: store.Teams, Err: errNotOpened})
		return s
	}
	if err := r.teams.Err(); err != nil {
		s.Degraded = append(s.Degraded, err)
	}
	if r.assigned != nil {
		s.Assigned = r.assigned.Docs()
		if err := r.assigned.Err(); err != nil {
			s.Degraded = append(s.Degraded, err)
		}
	}
	if !r.teams.Loaded() {
		return s
	}

	s.Status = StatusReady
	s.Teams = r.teams.Docs()
	s.Active, s.Ambiguous = SelectActive(s.Teams)
	return s
}

// Close tears down every mirror the resolver opened. It must be called on
// the loop.
func (r *Resolver) Close() {
	r.closeMirrors()
	r.session = nil
}
