package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/book_market/internal/logging"
	authmw "github.com/Skotchmaster/book_market/internal/middleware/auth"
	"github.com/Skotchmaster/book_market/internal/service"
	"github.com/Skotchmaster/book_market/internal/transport"
)

type AccountHTTP struct {
	Svc   *service.AccountService
	Items *service.ItemService
}

func (h *AccountHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "customers.register")

	var req transport.CreateAccountRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "reason", "invalid body", "error", err)
		return invalidBody()
	}

	acc, err := h.Svc.Register(ctx, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, transport.NewAccountResponse(acc))
}

func (h *AccountHTTP) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := authmw.RequireSelfOrAdmin(c, id); err != nil {
		return err
	}

	acc, err := h.Svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, transport.NewAccountResponse(acc))
}

func (h *AccountHTTP) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "customers.update")

	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := authmw.RequireSelfOrAdmin(c, id); err != nil {
		return err
	}

	var req transport.UpdateAccountRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("update_customer_error", "status", 400, "reason", "invalid body", "error", err)
		return invalidBody()
	}

	acc, err := h.Svc.Update(ctx, id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, transport.NewAccountResponse(acc))
}

func (h *AccountHTTP) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := authmw.RequireSelfOrAdmin(c, id); err != nil {
		return err
	}

	if err := h.Svc.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AccountHTTP) Books(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := authmw.RequireSelfOrAdmin(c, id); err != nil {
		return err
	}

	p := pageOf(c)
	total, items, err := h.Items.ListByAccount(c.Request().Context(), id, c.QueryParam("status"), p.offset, p.limit)
	if err != nil {
		return err
	}
	return pageJSON(c, p, total, items)
}
