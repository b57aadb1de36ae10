// Package view derives the application-level picture of the active team
// from mirror contents. Derive is pure: the same input always yields the
// same View, and nothing here touches the store or the loop.
package view

import (
	"slices"
	"strings"

	"github.com/dimitrije/teamtasks-api/internal/models"
	"github.com/dimitrije/teamtasks-api/internal/sanitize"
	"github.com/dimitrije/teamtasks-api/internal/session"
)

type Phase string

const (
	PhaseSignedOut Phase = "signed_out"
	PhaseLoading   Phase = "loading"
	PhaseNoTeam    Phase = "no_team"
	PhaseReady     Phase = "ready"
)

type Input struct {
	Session     *session.Session
	Users       []models.User
	Teams       []models.Team
	TeamsLoaded bool
	Tasks       []models.Task
	Assigned    []models.Task
	Search      string
	Degraded    []string
}

// Task is a task ready for presentation: its description is sanitized.
type Task struct {
	ID          string
	Title       string
	Description string
	CreatedBy   string
	Team        string
	Assignees   []string
	Status      models.TaskStatus
}

type View struct {
	Phase          Phase
	Session        *session.Session
	ActiveTeam     *models.Team
	Ambiguous      bool
	Roster         []models.User
	AssignablePool []models.User
	VisibleTasks   []Task
	Assigned       []Task
	Search         string
	Degraded       []string

	// MissingMembers are member ids with no user document yet.
	MissingMembers []string
	// StaleReferences are roster members whose team field does not point
	// at the active team.
	StaleReferences []string
}

func Derive(in Input, s sanitize.Sanitizer) View {
	v := View{
		Phase:    PhaseSignedOut,
		Search:   in.Search,
		Degraded: slices.Sorted(slices.Values(in.Degraded)),
	}
	if in.Session == nil {
		return v
	}
	sess := *in.Session
	v.Session = &sess

	if !in.TeamsLoaded {
		v.Phase = PhaseLoading
		return v
	}

	active, ambiguous := session.SelectActive(in.Teams)
	if active == nil {
		v.Phase = PhaseNoTeam
		return v
	}
	v.Phase = PhaseReady
	v.ActiveTeam = active
	v.Ambiguous = ambiguous

	v.Roster, v.MissingMembers = roster(active, in.Users)
	for _, u := range v.Roster {
		if u.ID != sess.UserID {
			v.AssignablePool = append(v.AssignablePool, u)
		}
		if u.TeamID() != active.ID {
			v.StaleReferences = append(v.StaleReferences, u.ID)
		}
	}

	needle := strings.ToLower(in.Search)
	for _, t := range in.Tasks {
		if t.Team != active.ID {
			continue
		}
		if !strings.Contains(strings.ToLower(t.Title), needle) {
			continue
		}
		v.VisibleTasks = append(v.VisibleTasks, present(t, s))
	}

	for _, t := range in.Assigned {
		if t.Team == active.ID {
			v.Assigned = append(v.Assigned, present(t, s))
		}
	}

	return v
}

func roster(team *models.Team, users []models.User) (members []models.User, missing []string) {
	byID := make(map[string]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	seen := make(map[string]bool, len(team.Members))
	for _, id := range team.Members {
		if seen[id] {
			continue
		}
		seen[id] = true
		u, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		members = append(members, u)
	}
	return members, missing
}

func present(t models.Task, s sanitize.Sanitizer) Task {
	return Task{
		ID:          t.ID,
		Title:       t.Title,
		Description: s.Sanitize(t.Description),
		CreatedBy:   t.CreatedBy,
		Team:        t.Team,
		Assignees:   slices.Clone(t.Assignees),
		Status:      t.Status,
	}
}
