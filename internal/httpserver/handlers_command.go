package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/crabnebula-dev/gitbutler/internal/domain"
	apperrors "github.com/crabnebula-dev/gitbutler/internal/platform/errors"
)

// handleCommand decodes a command request and dispatches it. The status is
// always 200; failures travel in the envelope.
func (s *Server) handleCommand(c echo.Context) error {
	ctx := c.Request().Context()

	var req domain.Request
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		serr := apperrors.MalformedRequest(err)
		slog.InfoContext(ctx, "Malformed command request", "error", err)
		return writeEnvelope(c, domain.Failure(serr.Message))
	}
	if req.Command == "" {
		serr := apperrors.MalformedRequest(errors.New("missing command"))
		slog.InfoContext(ctx, "Malformed command request", "error", serr.Message)
		return writeEnvelope(c, domain.Failure(serr.Message))
	}

	return writeEnvelope(c, s.dispatcher.Dispatch(ctx, req))
}

// writeEnvelope encodes resp before touching the response so a result that
// cannot be encoded still yields a well-formed error envelope.
func writeEnvelope(c echo.Context, resp domain.Response) error {
	body, err := json.Marshal(resp)
	if err != nil {
		slog.ErrorContext(c.Request().Context(), "Failed to encode command result", "error", err)
		body, _ = json.Marshal(domain.Failure(fmt.Sprintf("failed to encode result: %v", err)))
	}
	if err := c.JSONBlob(http.StatusOK, body); err != nil {
		return fmt.Errorf("failed to write command response: %w", err)
	}
	return nil
}
