package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/book_market/internal/logging"
	"github.com/Skotchmaster/book_market/internal/service"
	"github.com/Skotchmaster/book_market/internal/transport"
)

// AdminHTTP serves /admins/*. The gate has already required the ADMIN role.
type AdminHTTP struct {
	Accounts  *service.AccountService
	Purchases *service.PurchaseService
}

func (h *AdminHTTP) Report(c echo.Context) error {
	return c.String(http.StatusOK, "This is a report. Only admin can see it!")
}

func (h *AdminHTTP) Customers(c echo.Context) error {
	p := pageOf(c)
	total, list, err := h.Accounts.List(c.Request().Context(), c.QueryParam("name"), p.offset, p.limit)
	if err != nil {
		return err
	}
	return pageJSON(c, p, total, transport.NewAccountResponses(list))
}

func (h *AdminHTTP) AssignInvoice(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admins.assign_invoice")

	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req transport.AssignInvoiceRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("assign_invoice_error", "status", 400, "reason", "invalid body", "error", err)
		return invalidBody()
	}

	p, err := h.Purchases.AssignInvoice(ctx, id, req.Invoice)
	if err != nil {
		return err
	}
	l.Info("assign_invoice_success", "purchase_id", p.ID)
	return c.JSON(http.StatusOK, p)
}
