package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/book_market/internal/apperr"
	"github.com/Skotchmaster/book_market/internal/logging"
	"github.com/Skotchmaster/book_market/internal/models"
)

const accountKey = "account"

type TokenValidator interface {
	SubjectOf(token string) (uint, error)
}

type AccountLoader interface {
	GetAccount(ctx context.Context, id uint) (*models.Account, error)
}

var (
	errNoBearer       = errors.New("missing bearer token")
	errUnknownAccount = errors.New("token subject does not resolve to an account")
	errInactive       = errors.New("account is inactive")
)

// Gate authorizes every request against routes. Public routes pass through
// without identity; every other route needs a valid bearer token of an
// ACTIVE account, and admin routes also need the ADMIN role. The resolved
// account is stored in the echo context for handlers.
func Gate(routes RouteTable, tokens TokenValidator, accounts AccountLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			tier := routes.Classify(req.Method, req.URL.Path)
			if tier == TierPublic {
				return next(c)
			}

			ctx := req.Context()
			l := logging.FromContext(ctx).With("mw", "auth.gate", "tier", tier.String())

			raw, ok := bearer(req.Header.Get(echo.HeaderAuthorization))
			if !ok {
				l.Warn("auth_rejected", "status", 401, "reason", "no bearer token")
				return apperr.Authentication("Invalid token", errNoBearer)
			}

			id, err := tokens.SubjectOf(raw)
			if err != nil {
				l.Warn("auth_rejected", "status", 401, "reason", "token invalid", "error", err)
				return err
			}

			acc, err := accounts.GetAccount(ctx, id)
			if err != nil {
				if errors.Is(err, apperr.ErrNotFound) {
					l.Warn("auth_rejected", "status", 401, "reason", "unknown subject", "account_id", id)
					return apperr.Authentication("Invalid token", errUnknownAccount)
				}
				l.Error("auth_failed", "status", 500, "reason", "cannot load account", "error", err)
				return err
			}
			if !acc.IsActive() {
				l.Warn("auth_rejected", "status", 401, "reason", "account inactive", "account_id", id)
				return apperr.Authentication("Invalid token", errInactive)
			}

			if tier == TierAdmin && !acc.HasRole(models.RoleAdmin) {
				l.Warn("auth_rejected", "status", 403, "reason", "admin role required", "account_id", id)
				return apperr.AccessDenied()
			}

			c.Set(accountKey, acc)
			c.SetRequest(req.WithContext(logging.IntoContext(ctx, logging.FromContext(ctx).With("account_id", acc.ID))))
			return next(c)
		}
	}
}

func bearer(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
