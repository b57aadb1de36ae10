package handlers

import (
	"github.com/dimitrije/teamtasks-api/internal/dashboard"
	"github.com/dimitrije/teamtasks-api/internal/middleware"
	"github.com/dimitrije/teamtasks-api/internal/mutation"
	"github.com/dimitrije/teamtasks-api/pkg/dto"
	"github.com/m1z23r/drift/pkg/drift"
)

type DashboardHandler struct {
	boards BoardsInterface
}

func NewDashboardHandler(boards BoardsInterface) *DashboardHandler {
	return &DashboardHandler{boards: boards}
}

// board resolves the caller's dashboard, writing the failure response
// itself when it returns false.
func (h *DashboardHandler) board(c *drift.Context) (dashboard.Board, bool) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		c.Unauthorized("not authenticated")
		return nil, false
	}

	b, err := h.boards.Board(c.Request.Context(), p)
	if err != nil {
		c.InternalServerError("failed to open dashboard")
		return nil, false
	}
	return b, true
}

func (h *DashboardHandler) GetView(c *drift.Context) {
	b, ok := h.board(c)
	if !ok {
		return
	}

	var search *string
	if c.Request.URL.Query().Has("q") {
		q := c.QueryParam("q")
		search = &q
	}

	v, err := b.View(c.Request.Context(), search)
	if err != nil {
		writeError(c, err)
		return
	}

	_ = c.JSON(200, ToViewResponse(v))
}

func (h *DashboardHandler) SetSearch(c *drift.Context) {
	b, ok := h.board(c)
	if !ok {
		return
	}

	var req dto.SearchRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	ctx := c.Request.Context()
	if err := b.SetSearch(ctx, req.Query); err != nil {
		writeError(c, err)
		return
	}

	v, err := b.View(ctx, nil)
	if err != nil {
		writeError(c, err)
		return
	}

	_ = c.JSON(200, ToViewResponse(v))
}

func (h *DashboardHandler) ListUsers(c *drift.Context) {
	b, ok := h.board(c)
	if !ok {
		return
	}

	users, err := b.Users(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	_ = c.JSON(200, toUserResponses(users))
}

func (h *DashboardHandler) CreateTeam(c *drift.Context) {
	b, ok := h.board(c)
	if !ok {
		return
	}

	var req dto.CreateTeamRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	id, err := b.CreateTeam(c.Request.Context(), req.Name, req.MemberIDs)
	if err != nil {
		writeError(c, err)
		return
	}

	_ = c.JSON(201, dto.CreatedResponse{ID: id})
}

func (h *DashboardHandler) RepairTeam(c *drift.Context) {
	b, ok := h.board(c)
	if !ok {
		return
	}

	var req dto.RepairTeamRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	if err := b.RepairReferences(c.Request.Context(), req.TeamID, req.UserIDs); err != nil {
		writeError(c, err)
		return
	}

	_ = c.JSON(200, map[string]string{"message": "team references repaired"})
}

func (h *DashboardHandler) CreateTask(c *drift.Context) {
	b, ok := h.board(c)
	if !ok {
		return
	}

	var req dto.CreateTaskRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	id, err := b.CreateTask(c.Request.Context(), mutation.NewTask{
		Title:       req.Title,
		Description: req.Description,
		Assignees:   req.Assignees,
		TeamID:      req.TeamID,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	_ = c.JSON(201, dto.CreatedResponse{ID: id})
}

func (h *DashboardHandler) ToggleStatus(c *drift.Context) {
	b, ok := h.board(c)
	if !ok {
		return
	}

	taskID := c.Param("id")
	status, err := b.ToggleStatus(c.Request.Context(), taskID)
	if err != nil {
		writeError(c, err)
		return
	}

	_ = c.JSON(200, dto.TaskStatusResponse{ID: taskID, Status: string(status)})
}

func (h *DashboardHandler) ToggleAssignment(c *drift.Context) {
	b, ok := h.board(c)
	if !ok {
		return
	}

	taskID := c.Param("id")
	assignees, err := b.ToggleAssignment(c.Request.Context(), taskID, c.Param("userId"))
	if err != nil {
		writeError(c, err)
		return
	}

	_ = c.JSON(200, dto.TaskAssigneesResponse{ID: taskID, Assignees: nonNil(assignees)})
}

