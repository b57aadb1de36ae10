package handlers

import (
	"github.com/dimitrije/teamtasks-api/internal/middleware"
	"github.com/dimitrije/teamtasks-api/internal/sse"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

type SSEHandler struct {
	hub    HubInterface
	boards BoardsInterface
}

func NewSSEHandler(hub HubInterface, boards BoardsInterface) *SSEHandler {
	return &SSEHandler{
		hub:    hub,
		boards: boards,
	}
}

// Connect streams the caller's derived view: the current one on connect,
// then every recomputation the dashboard publishes to the hub.
func (h *SSEHandler) Connect(c *drift.Context) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		c.Unauthorized("not authenticated")
		return
	}

	ctx := c.Request.Context()

	board, err := h.boards.Board(ctx, p)
	if err != nil {
		c.InternalServerError("failed to open dashboard")
		return
	}

	sseCtx := c.SSE()

	clientID := uuid.New().String()
	client := &sse.Client{
		ID:     clientID,
		UserID: p.UID,
		Send:   make(chan []byte, 256),
	}

	h.hub.Register(client)
	defer h.hub.Unregister(client)

	if err := sseCtx.SendJSON(map[string]string{
		"type":      "connected",
		"client_id": clientID,
	}, "system", ""); err != nil {
		return
	}

	v, err := board.View(ctx, nil)
	if err != nil {
		return
	}
	if err := sseCtx.SendJSON(sse.Event{
		Type: sse.ViewEvent,
		Data: ToViewResponse(v),
	}, "message", ""); err != nil {
		return
	}

	for {
		select {
		case msg, ok := <-client.Send:
			if !ok {
				return
			}
			if err := sseCtx.Send(string(msg), "message", ""); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
