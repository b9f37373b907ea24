package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/book_market/internal/logging"
	"github.com/Skotchmaster/book_market/internal/service"
	"github.com/Skotchmaster/book_market/internal/transport"
)

type AuthHTTP struct {
	Svc *service.AuthService
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "reason", "invalid body", "error", err)
		return invalidBody()
	}
	if err := req.Validate(); err != nil {
		return err
	}

	res, err := h.Svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, transport.LoginResponse{
		Token:     res.Token,
		TokenType: "Bearer",
		ExpiresAt: res.ExpiresAt,
		Customer:  transport.NewAccountResponse(res.Account),
	})
}
