package handlers

import (
	"github.com/dimitrije/teamtasks-api/internal/models"
	"github.com/dimitrije/teamtasks-api/internal/view"
	"github.com/dimitrije/teamtasks-api/pkg/dto"
)

func toUserResponse(u models.User) dto.UserResponse {
	return dto.UserResponse{
		ID:       u.ID,
		Name:     u.DisplayName(),
		Email:    u.Email,
		Team:     u.Team,
		PhotoURL: u.PhotoURL,
	}
}

func toUserResponses(users []models.User) []dto.UserResponse {
	out := make([]dto.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return out
}

func toTaskResponses(tasks []view.Task) []dto.TaskResponse {
	out := make([]dto.TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, dto.TaskResponse{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			CreatedBy:   t.CreatedBy,
			Team:        t.Team,
			Assignees:   nonNil(t.Assignees),
			Status:      string(t.Status),
		})
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// ToViewResponse is the wire form of a derived view, shared by the view
// endpoint and the event stream.
func ToViewResponse(v view.View) dto.ViewResponse {
	resp := dto.ViewResponse{
		Phase:           string(v.Phase),
		Ambiguous:       v.Ambiguous,
		Roster:          toUserResponses(v.Roster),
		AssignablePool:  toUserResponses(v.AssignablePool),
		Tasks:           toTaskResponses(v.VisibleTasks),
		Assigned:        toTaskResponses(v.Assigned),
		Search:          v.Search,
		MissingMembers:  nonNil(v.MissingMembers),
		StaleReferences: nonNil(v.StaleReferences),
		Degraded:        nonNil(v.Degraded),
	}
	if v.Session != nil {
		resp.Session = &dto.SessionResponse{UserID: v.Session.UserID, DisplayName: v.Session.DisplayName}
	}
	if v.ActiveTeam != nil {
		resp.ActiveTeam = &dto.TeamResponse{
			ID:        v.ActiveTeam.ID,
			Name:      v.ActiveTeam.Name,
			CreatedBy: v.ActiveTeam.CreatedBy,
			Members:   nonNil(v.ActiveTeam.Members),
		}
	}
	return resp
}
