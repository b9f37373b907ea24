package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/book_market/internal/apperr"
	"github.com/Skotchmaster/book_market/internal/logging"
	authmw "github.com/Skotchmaster/book_market/internal/middleware/auth"
	"github.com/Skotchmaster/book_market/internal/service"
	"github.com/Skotchmaster/book_market/internal/transport"
)

type PurchaseHTTP struct {
	Svc *service.PurchaseService
}

func (h *PurchaseHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "purchases.create")

	var req transport.CreatePurchaseRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_purchase_error", "status", 400, "reason", "invalid body", "error", err)
		return invalidBody()
	}
	if req.CustomerID == 0 {
		if caller := authmw.Account(c); caller != nil {
			req.CustomerID = caller.ID
		}
	}
	if err := authmw.RequireSelfOrAdmin(c, req.CustomerID); err != nil {
		return err
	}

	p, err := h.Svc.Create(ctx, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

// Get answers a non-admin caller with the same 403 for a purchase that does
// not exist and for one owned by someone else.
func (h *PurchaseHTTP) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.Svc.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) && !authmw.IsAdmin(c) {
			return apperr.AccessDenied()
		}
		return err
	}
	if err := authmw.RequireSelfOrAdmin(c, p.AccountID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}
