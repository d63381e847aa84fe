package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/naka-gawa/pr-dashboard/internal/domain"
)

// Error codes returned in the error envelope.
const (
	codeInvalidArgument = "INVALID_ARGUMENT"
	codeUnauthenticated = "UNAUTHENTICATED"
	codeForbidden       = "FORBIDDEN"
	codeNotFound        = "NOT_FOUND"
	codeUpstream        = "UPSTREAM_ERROR"
	codeUnavailable     = "UNAVAILABLE"
	codeInternal        = "INTERNAL"
)

// ErrorBody is the error envelope's payload.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func classify(err error) (status int, code string) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, codeInvalidArgument
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, codeUnauthenticated
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, codeForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, domain.ErrTransient), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, codeUnavailable
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway, codeUpstream
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

func writeError(c *fiber.Ctx, err error) error {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	return c.Status(status).JSON(errorResponse(code, msg))
}

func errorResponse(code, msg string) ErrorResponse {
	return ErrorResponse{Error: ErrorBody{Code: code, Message: msg}}
}

// fail writes err and raises the unauthenticated signal when upstream
// rejected the credential.
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	if errors.Is(err, domain.ErrUnauthenticated) {
		h.unauthenticated()
	}
	if status, _ := classify(err); status >= http.StatusInternalServerError {
		h.log.Warnw("request failed", "path", utils.CopyString(c.Path()), "error", err)
	}
	return writeError(c, err)
}

// parseOptionalBody decodes a JSON body into out, accepting an empty body.
func parseOptionalBody(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return fmt.Errorf("%w: invalid body: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}
