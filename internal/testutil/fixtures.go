package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/dimitrije/teamtasks-api/internal/models"
	"github.com/dimitrije/teamtasks-api/internal/store"
)

// Fixtures writes test documents through any store.Store
type Fixtures struct {
	st      store.Store
	counter int
}

// NewFixtures creates a new fixtures factory
func NewFixtures(st store.Store) *Fixtures {
	return &Fixtures{st: st}
}

// UserOption customizes a user fixture
type UserOption func(*models.User)

// WithName sets the display name
func WithName(name string) UserOption {
	return func(u *models.User) { u.Name = name }
}

// WithTeam sets the user's canonical team reference
func WithTeam(teamID string) UserOption {
	return func(u *models.User) { u.Team = &teamID }
}

// CreateUser writes users/{id} with default values
func (f *Fixtures) CreateUser(t *testing.T, id string, opts ...UserOption) models.User {
	t.Helper()
	f.counter++

	user := models.User{
		ID:    id,
		Name:  fmt.Sprintf("Test User %d", f.counter),
		Email: fmt.Sprintf("user%d@example.com", f.counter),
	}
	for _, opt := range opts {
		opt(&user)
	}

	fields := map[string]any{
		"name":  user.Name,
		"email": user.Email,
	}
	if user.Team != nil {
		fields["team"] = *user.Team
	}

	if err := f.st.Set(context.Background(), store.Users, id, fields); err != nil {
		t.Fatalf("failed to create user fixture: %v", err)
	}
	return user
}

// CreateTeam adds a team document and returns its id
func (f *Fixtures) CreateTeam(t *testing.T, name, createdBy string, members ...string) string {
	t.Helper()

	id, err := f.st.Add(context.Background(), store.Teams, map[string]any{
		"name":      name,
		"createdBy": createdBy,
		"members":   members,
	})
	if err != nil {
		t.Fatalf("failed to create team fixture: %v", err)
	}
	return id
}

// CreateTask adds a todo task document and returns its id
func (f *Fixtures) CreateTask(t *testing.T, teamID, title, createdBy string, assignees ...string) string {
	t.Helper()
	if assignees == nil {
		assignees = []string{}
	}

	id, err := f.st.Add(context.Background(), store.Tasks, map[string]any{
		"title":       title,
		"description": title + " details",
		"createdBy":   createdBy,
		"team":        teamID,
		"assignees":   assignees,
		"status":      string(models.StatusTodo),
	})
	if err != nil {
		t.Fatalf("failed to create task fixture: %v", err)
	}
	return id
}
