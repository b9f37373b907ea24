package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/book_market/internal/apperr"
	"github.com/Skotchmaster/book_market/internal/logging"
)

type ErrorResponse struct {
	HTTPCode     int                 `json:"http_code"`
	Message      string              `json:"message"`
	InternalCode string              `json:"internal_code"`
	Errors       []apperr.FieldError `json:"errors,omitempty"`
}

func statusOf(k apperr.Kind) int {
	switch k {
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindBadRequest:
		return http.StatusBadRequest
	case apperr.KindValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler is the only place where errors become HTTP responses.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	resp := toResponse(err)
	if resp.HTTPCode >= http.StatusInternalServerError {
		logging.FromContext(c.Request().Context()).Error("unhandled_error", "error", err)
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(resp.HTTPCode)
	} else {
		werr = c.JSON(resp.HTTPCode, resp)
	}
	if werr != nil {
		logging.FromContext(c.Request().Context()).Error("write_error_response_failed", "error", werr)
	}
}

func toResponse(err error) ErrorResponse {
	if ae, ok := apperr.As(err); ok {
		status := statusOf(ae.Kind)
		msg := ae.Message
		if status == http.StatusInternalServerError {
			msg = http.StatusText(status)
		}
		return ErrorResponse{HTTPCode: status, Message: msg, InternalCode: ae.Code, Errors: ae.Fields}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		} else if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		return ErrorResponse{HTTPCode: he.Code, Message: msg, InternalCode: apperr.CodeInvalidRequest}
	}

	return ErrorResponse{
		HTTPCode:     http.StatusInternalServerError,
		Message:      http.StatusText(http.StatusInternalServerError),
		InternalCode: apperr.CodeInternal,
	}
}
