package httpserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	authmw "github.com/Skotchmaster/book_market/internal/middleware/auth"
	loggingmw "github.com/Skotchmaster/book_market/internal/middleware/logging"
)

type Deps struct {
	Logger *slog.Logger
	Routes authmw.RouteTable
	Tokens authmw.TokenValidator
	Loader authmw.AccountLoader
	Ready  func(ctx context.Context) error

	AuthHandler     *AuthHTTP
	AccountHandler  *AccountHTTP
	ItemHandler     *ItemHTTP
	PurchaseHandler *PurchaseHTTP
	AdminHandler    *AdminHTTP
}

// New builds the echo instance with the full middleware chain:
// recover, request id, request logging, authorization.
func New(d *Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler

	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(loggingmw.RequestLogger(d.Logger))
	e.Use(authmw.Gate(d.Routes, d.Tokens, d.Loader))

	Register(e, d)
	return e
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return c.NoContent(http.StatusServiceUnavailable)
			}
		}
		return c.NoContent(http.StatusOK)
	})

	e.POST("/login", d.AuthHandler.Login)

	customers := e.Group("/customers")
	customers.POST("", d.AccountHandler.Register)
	customers.GET("/:id", d.AccountHandler.Get)
	customers.PUT("/:id", d.AccountHandler.Update)
	customers.DELETE("/:id", d.AccountHandler.Delete)
	customers.GET("/:id/books", d.AccountHandler.Books)

	books := e.Group("/books")
	books.GET("", d.ItemHandler.List)
	books.GET("/active", d.ItemHandler.ListActive)
	books.GET("/search", d.ItemHandler.Search)
	books.GET("/:id", d.ItemHandler.Get)
	books.POST("", d.ItemHandler.Create)
	books.PUT("/:id", d.ItemHandler.Update)
	books.DELETE("/:id", d.ItemHandler.Cancel)

	purchases := e.Group("/purchases")
	purchases.POST("", d.PurchaseHandler.Create)
	purchases.GET("/:id", d.PurchaseHandler.Get)

	admins := e.Group("/admins")
	admins.GET("/report", d.AdminHandler.Report)
	admins.GET("/customers", d.AdminHandler.Customers)
	admins.PATCH("/purchases/:id/invoice", d.AdminHandler.AssignInvoice)
}
