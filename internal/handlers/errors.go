package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/dimitrije/teamtasks-api/internal/apperrors"
	"github.com/dimitrije/teamtasks-api/pkg/dto"
	"github.com/m1z23r/drift/pkg/drift"
)

// writeError maps the mutation failure taxonomy onto HTTP statuses.
func writeError(c *drift.Context, err error) {
	var (
		validation *apperrors.ValidationError
		notFound   *apperrors.NotFoundError
		partial    *apperrors.PartialWriteError
		write      *apperrors.WriteError
	)
	msg := apperrors.UserMessage(err)

	switch {
	case errors.As(err, &validation):
		c.BadRequest(msg)
	case errors.As(err, &notFound):
		c.NotFound(msg)
	case errors.As(err, &partial):
		_ = c.JSON(http.StatusMultiStatus, dto.PartialWriteResponse{
			TeamID:        partial.TeamID,
			FailedUserIDs: partial.FailedIDs(),
			Message:       msg,
		})
	case errors.As(err, &write):
		if write.Timeout() {
			c.GatewayTimeout(msg)
			return
		}
		c.BadGateway(msg)
	case errors.Is(err, context.DeadlineExceeded):
		c.GatewayTimeout("request timed out")
	default:
		c.InternalServerError(msg)
	}
}
