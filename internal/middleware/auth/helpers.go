package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/book_market/internal/apperr"
	"github.com/Skotchmaster/book_market/internal/models"
)

// Account returns the caller resolved by Gate, or nil on public routes.
func Account(c echo.Context) *models.Account {
	acc, _ := c.Get(accountKey).(*models.Account)
	return acc
}

func IsAdmin(c echo.Context) bool {
	acc := Account(c)
	return acc != nil && acc.HasRole(models.RoleAdmin)
}

// RequireSelfOrAdmin allows the account itself or any administrator.
func RequireSelfOrAdmin(c echo.Context, accountID uint) error {
	acc := Account(c)
	if acc == nil {
		return apperr.AccessDenied()
	}
	if acc.ID == accountID || acc.HasRole(models.RoleAdmin) {
		return nil
	}
	return apperr.AccessDenied()
}
