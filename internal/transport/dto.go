package transport

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/book_market/internal/models"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string          `json:"token"`
	TokenType string          `json:"token_type"`
	ExpiresAt time.Time       `json:"expires_at"`
	Customer  AccountResponse `json:"customer"`
}

type CreateAccountRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UpdateAccountRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type AccountResponse struct {
	ID     uint                 `json:"id"`
	Name   string               `json:"name"`
	Email  string               `json:"email"`
	Status models.AccountStatus `json:"status"`
	Roles  []models.Role        `json:"roles"`
}

func NewAccountResponse(a *models.Account) AccountResponse {
	return AccountResponse{
		ID:     a.ID,
		Name:   a.Name,
		Email:  a.Email,
		Status: a.Status,
		Roles:  a.RoleNames(),
	}
}

func NewAccountResponses(list []models.Account) []AccountResponse {
	out := make([]AccountResponse, 0, len(list))
	for i := range list {
		out = append(out, NewAccountResponse(&list[i]))
	}
	return out
}

type CreateItemRequest struct {
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	CustomerID uint            `json:"customer_id"`
}

// UpdateItemRequest carries only the fields to change.
type UpdateItemRequest struct {
	Name  *string          `json:"name"`
	Price *decimal.Decimal `json:"price"`
}

type CreatePurchaseRequest struct {
	CustomerID uint   `json:"customer_id"`
	BookIDs    []uint `json:"book_ids"`
}

type AssignInvoiceRequest struct {
	Invoice string `json:"invoice"`
}
