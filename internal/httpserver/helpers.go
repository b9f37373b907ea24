package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/book_market/internal/apperr"
	"github.com/Skotchmaster/book_market/internal/util"
)

func parseID(c echo.Context, name string) (uint, error) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		return 0, apperr.InvalidRequest(apperr.FieldError{Field: name, Message: "Must be a positive integer"})
	}
	return uint(n), nil
}

func invalidBody() error {
	return apperr.InvalidRequest(apperr.FieldError{Field: "body", Message: "Invalid body"})
}

type page struct {
	page, offset, limit int
}

func pageOf(c echo.Context) page {
	p := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(p, size)
	if p < 1 {
		p = 1
	}
	return page{page: p, offset: offset, limit: limit}
}

func pageJSON(c echo.Context, p page, total int64, data any) error {
	return c.JSON(http.StatusOK, map[string]any{
		"data": data,
		"meta": util.NewMeta(p.page, p.offset, p.limit, total),
	})
}
