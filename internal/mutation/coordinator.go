// Package mutation validates user intents against the mirrored state and
// turns them into store writes.
package mutation

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dimitrije/teamtasks-api/internal/apperrors"
	"github.com/dimitrije/teamtasks-api/internal/models"
	"github.com/dimitrije/teamtasks-api/internal/reactor"
	"github.com/dimitrije/teamtasks-api/internal/session"
	"github.com/dimitrije/teamtasks-api/internal/store"
	"go.uber.org/zap"
)

const DefaultWriteTimeout = 10 * time.Second

// Reader exposes the mirrored state a mutation validates against. Its
// methods are only called on the loop.
type Reader interface {
	Session() *session.Session
	ActiveTeam() *models.Team
	Task(id string) (models.Task, bool)
}

type NewTask struct {
	Title       string
	Description string
	Assignees   []string
	TeamID      string
}

// Coordinator reads on the loop and writes off it. Nothing is buffered
// locally: the mirrors reflect a write only once the store delivers it.
type Coordinator struct {
	loop         *reactor.Loop
	store        store.Store
	reader       Reader
	writeTimeout time.Duration
	log          *zap.SugaredLogger
}

func NewCoordinator(loop *reactor.Loop, st store.Store, reader Reader, writeTimeout time.Duration, log *zap.SugaredLogger) *Coordinator {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Coordinator{
		loop:         loop,
		store:        st,
		reader:       reader,
		writeTimeout: writeTimeout,
		log:          log,
	}
}

func (c *Coordinator) read(ctx context.Context, fn func()) error {
	if err := c.loop.Do(ctx, fn); err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}
	return nil
}

func (c *Coordinator) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.writeTimeout)
}

// CreateTeam writes the team document, then points every member's team
// field at it. Reference writes run concurrently; any failure yields a
// PartialWriteError and the team document stays.
func (c *Coordinator) CreateTeam(ctx context.Context, name string, memberIDs []string) (string, error) {
	var sess *session.Session
	if err := c.read(ctx, func() { sess = c.reader.Session() }); err != nil {
		return "", err
	}
	if sess == nil {
		return "", apperrors.Invalid(apperrors.ErrNotSignedIn)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperrors.Invalid(apperrors.ErrTeamNameRequired)
	}

	members := []string{sess.UserID}
	for _, id := range memberIDs {
		if id == "" || slices.Contains(members, id) {
			continue
		}
		members = append(members, id)
	}
	if len(members) < 2 {
		return "", apperrors.Invalid(apperrors.ErrMembersRequired)
	}

	wctx, cancel := c.writeContext(ctx)
	defer cancel()

	teamID, err := c.store.Add(wctx, store.Teams, map[string]any{
		"name":      name,
		"createdBy": sess.UserID,
		"members":   members,
	})
	if err != nil {
		return "", &apperrors.WriteError{Op: "add", Collection: store.Teams, Err: err}
	}
	c.log.Infow("team created", "team_id", teamID, "created_by", sess.UserID, "members", len(members))

	if err := c.linkMembers(wctx, teamID, members); err != nil {
		return teamID, err
	}
	return teamID, nil
}

// RepairReferences re-issues the team reference write for userIDs, or for
// every member when userIDs is empty. It is safe to repeat.
func (c *Coordinator) RepairReferences(ctx context.Context, teamID string, userIDs []string) error {
	var (
		sess   *session.Session
		active *models.Team
	)
	if err := c.read(ctx, func() {
		sess = c.reader.Session()
		active = c.reader.ActiveTeam()
	}); err != nil {
		return err
	}
	if sess == nil {
		return apperrors.Invalid(apperrors.ErrNotSignedIn)
	}
	if active == nil || active.ID != teamID {
		return apperrors.Invalid(apperrors.ErrNoActiveTeam)
	}

	if len(userIDs) == 0 {
		userIDs = active.Members
	}
	for _, id := range userIDs {
		if !active.HasMember(id) {
			return apperrors.Invalid(fmt.Errorf("%w: %s", apperrors.ErrNotTeamMember, id))
		}
	}

	wctx, cancel := c.writeContext(ctx)
	defer cancel()
	return c.linkMembers(wctx, teamID, userIDs)
}

func (c *Coordinator) linkMembers(ctx context.Context, teamID string, userIDs []string) error {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		failed = map[string]error{}
	)
	for _, id := range userIDs {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			if err := c.store.Set(ctx, store.Users, userID, map[string]any{"team": teamID}); err != nil {
				mu.Lock()
				failed[userID] = &apperrors.WriteError{Op: "set", Collection: store.Users, ID: userID, Err: err}
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	if len(failed) == 0 {
		return nil
	}
	perr := &apperrors.PartialWriteError{TeamID: teamID, Failed: failed}
	c.log.Warnw("team member references incomplete", "team_id", teamID, "failed", perr.FailedIDs())
	return perr
}

func (c *Coordinator) CreateTask(ctx context.Context, in NewTask) (string, error) {
	var (
		sess   *session.Session
		active *models.Team
	)
	if err := c.read(ctx, func() {
		sess = c.reader.Session()
		active = c.reader.ActiveTeam()
	}); err != nil {
		return "", err
	}
	if sess == nil {
		return "", apperrors.Invalid(apperrors.ErrNotSignedIn)
	}
	if active == nil {
		return "", apperrors.Invalid(apperrors.ErrNoActiveTeam)
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return "", apperrors.Invalid(apperrors.ErrTitleRequired)
	}
	if strings.TrimSpace(in.Description) == "" {
		return "", apperrors.Invalid(apperrors.ErrDescriptionRequired)
	}
	if in.TeamID != "" && in.TeamID != active.ID {
		return "", apperrors.Invalid(apperrors.ErrWrongTeam)
	}

	assignees := []string{}
	for _, id := range in.Assignees {
		if slices.Contains(assignees, id) {
			continue
		}
		if !active.HasMember(id) {
			return "", apperrors.Invalid(fmt.Errorf("%w: %s", apperrors.ErrNotTeamMember, id))
		}
		assignees = append(assignees, id)
	}

	wctx, cancel := c.writeContext(ctx)
	defer cancel()

	taskID, err := c.store.Add(wctx, store.Tasks, map[string]any{
		"title":       in.Title,
		"description": in.Description,
		"createdBy":   sess.UserID,
		"assignees":   assignees,
		"team":        active.ID,
		"status":      string(models.StatusTodo),
	})
	if err != nil {
		return "", &apperrors.WriteError{Op: "add", Collection: store.Tasks, Err: err}
	}
	return taskID, nil
}

// activeTask reads taskID and the active team in one reaction. Tasks of
// other teams are rejected: they are outside the caller's view.
func (c *Coordinator) activeTask(ctx context.Context, taskID string) (models.Task, *models.Team, error) {
	var (
		task   models.Task
		found  bool
		active *models.Team
	)
	if err := c.read(ctx, func() {
		task, found = c.reader.Task(taskID)
		active = c.reader.ActiveTeam()
	}); err != nil {
		return models.Task{}, nil, err
	}
	if !found {
		return models.Task{}, nil, &apperrors.NotFoundError{Collection: store.Tasks, ID: taskID}
	}
	if active == nil {
		return models.Task{}, nil, apperrors.Invalid(apperrors.ErrNoActiveTeam)
	}
	if task.Team != active.ID {
		return models.Task{}, nil, apperrors.Invalid(fmt.Errorf("%w: %s", apperrors.ErrWrongTeam, taskID))
	}
	return task, active, nil
}

// ToggleAssignment removes userID from the task's assignees when present
// and adds it otherwise. The whole new set is written.
func (c *Coordinator) ToggleAssignment(ctx context.Context, taskID, userID string) ([]string, error) {
	task, active, err := c.activeTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !task.IsAssigned(userID) && !active.HasMember(userID) {
		return nil, apperrors.Invalid(fmt.Errorf("%w: %s", apperrors.ErrNotTeamMember, userID))
	}

	assignees := task.ToggleAssignee(userID)

	wctx, cancel := c.writeContext(ctx)
	defer cancel()

	if err := c.store.Set(wctx, store.Tasks, taskID, map[string]any{"assignees": assignees}); err != nil {
		return nil, &apperrors.WriteError{Op: "set", Collection: store.Tasks, ID: taskID, Err: err}
	}
	return assignees, nil
}

func (c *Coordinator) ToggleStatus(ctx context.Context, taskID string) (models.TaskStatus, error) {
	task, _, err := c.activeTask(ctx, taskID)
	if err != nil {
		return "", err
	}

	status := task.Status.Toggle()

	wctx, cancel := c.writeContext(ctx)
	defer cancel()

	if err := c.store.Set(wctx, store.Tasks, taskID, map[string]any{"status": string(status)}); err != nil {
		return "", &apperrors.WriteError{Op: "set", Collection: store.Tasks, ID: taskID, Err: err}
	}
	return status, nil
}
