package httpserver

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/book_market/internal/apperr"
	"github.com/Skotchmaster/book_market/internal/logging"
	authmw "github.com/Skotchmaster/book_market/internal/middleware/auth"
	"github.com/Skotchmaster/book_market/internal/models"
	"github.com/Skotchmaster/book_market/internal/service"
	"github.com/Skotchmaster/book_market/internal/transport"
)

type ItemHTTP struct {
	Svc *service.ItemService
}

func (h *ItemHTTP) List(c echo.Context) error {
	p := pageOf(c)
	total, items, err := h.Svc.List(c.Request().Context(), p.offset, p.limit)
	if err != nil {
		return err
	}
	return pageJSON(c, p, total, items)
}

func (h *ItemHTTP) ListActive(c echo.Context) error {
	p := pageOf(c)
	total, items, err := h.Svc.ListActive(c.Request().Context(), p.offset, p.limit)
	if err != nil {
		return err
	}
	return pageJSON(c, p, total, items)
}

func (h *ItemHTTP) Search(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return apperr.InvalidRequest(apperr.FieldError{Field: "q", Message: "Query must be provided"})
	}
	p := pageOf(c)
	total, items, err := h.Svc.Search(c.Request().Context(), q, p.offset, p.limit)
	if err != nil {
		return err
	}
	return pageJSON(c, p, total, items)
}

func (h *ItemHTTP) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	item, err := h.Svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

// Create lists a book for the caller, or for any customer when the caller
// is an administrator.
func (h *ItemHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "books.create")

	var req transport.CreateItemRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_book_error", "status", 400, "reason", "invalid body", "error", err)
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

	item, err := h.Svc.Create(ctx, req)
	if err != nil {
		return err
	}
	l.Info("create_book_success", "book_id", item.ID)
	return c.JSON(http.StatusCreated, item)
}

func (h *ItemHTTP) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "books.update")

	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if _, err := h.ownedOrAdmin(c, id); err != nil {
		return err
	}

	var req transport.UpdateItemRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("update_book_error", "status", 400, "reason", "invalid body", "error", err)
		return invalidBody()
	}

	item, err := h.Svc.Update(ctx, id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, item)
}

func (h *ItemHTTP) Cancel(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if _, err := h.ownedOrAdmin(c, id); err != nil {
		return err
	}

	if _, err := h.Svc.Cancel(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ItemHTTP) ownedOrAdmin(c echo.Context, id uint) (*models.Item, error) {
	item, err := h.Svc.Get(c.Request().Context(), id)
	if err != nil {
		return nil, err
	}
	caller := authmw.Account(c)
	if caller == nil || !(item.OwnedBy(caller.ID) || caller.HasRole(models.RoleAdmin)) {
		return nil, apperr.AccessDenied()
	}
	return item, nil
}
