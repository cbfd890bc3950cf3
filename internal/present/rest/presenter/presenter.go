package presenter

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"github.com/zeebo/xxh3"

	"github.com/totegamma/helm/internal/domain"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// OK wraps a successful response. The body hash doubles as ETag.
func OK(c echo.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return InternalError(c, err)
	}
	sum := xxh3.Hash128(body).Bytes()
	etag := `"` + hex.EncodeToString(sum[:]) + `"`
	if match := c.Request().Header.Get("If-None-Match"); match == etag {
		return c.NoContent(http.StatusNotModified)
	}
	c.Response().Header().Set("ETag", etag)
	return c.JSONBlob(http.StatusOK, body)
}

func BadRequest(c echo.Context, err error) error {
	slog.DebugContext(c.Request().Context(), "bad request", slog.String("error", err.Error()), slog.String("module", "rest"))
	return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func BadRequestMessage(c echo.Context, msg string) error {
	slog.DebugContext(c.Request().Context(), "bad request", slog.String("error", msg), slog.String("module", "rest"))
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}

func InternalError(c echo.Context, err error) error {
	slog.ErrorContext(c.Request().Context(), "internal error", slog.String("error", err.Error()), slog.String("module", "rest"))
	if hub := sentry.GetHubFromContext(c.Request().Context()); hub != nil {
		hub.CaptureException(err)
	} else {
		sentry.CaptureException(err)
	}
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

// Error writes err with the status its kind maps to.
func Error(c echo.Context, err error) error {
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		return InternalError(c, err)
	}

	resp := errorResponse{Error: err.Error()}
	var de *domain.Error
	if errors.As(err, &de) {
		resp.Code = de.Code
	} else if domain.KindOf(err) == domain.KindNotFound {
		resp.Code = "NotFound"
	}
	slog.DebugContext(c.Request().Context(), "request rejected", slog.String("error", err.Error()), slog.Int("status", status), slog.String("module", "rest"))
	return c.JSON(status, resp)
}

func StatusOf(err error) int {
	switch domain.KindOf(err) {
	case domain.KindAuthorization:
		return http.StatusForbidden
	case domain.KindState, domain.KindConflict:
		return http.StatusConflict
	case domain.KindValidation, domain.KindArithmetic:
		return http.StatusUnprocessableEntity
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
