package service

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/Skotchmaster/book_market/internal/hash"
	"github.com/Skotchmaster/book_market/internal/logging"
	"github.com/Skotchmaster/book_market/internal/models"
	"github.com/Skotchmaster/book_market/internal/repo"
	"github.com/Skotchmaster/book_market/internal/transport"
)

type AccountService struct {
	Store repo.Store
	Items *ItemService
}

// EmailAvailable is advisory. The unique index on accounts.email is what
// actually keeps two concurrent registrations apart.
func (s *AccountService) EmailAvailable(ctx context.Context, email string) (bool, error) {
	taken, err := s.Store.EmailTaken(ctx, email, 0)
	return !taken, err
}

func (s *AccountService) Register(ctx context.Context, req transport.CreateAccountRequest) (*models.Account, error) {
	l := logging.FromContext(ctx).With("svc", "accounts.register")

	if err := req.Validate(func(email string) (bool, error) { return s.EmailAvailable(ctx, email) }); err != nil {
		return nil, err
	}

	acc, err := s.newAccount(req.Name, req.Email, req.Password, models.RoleCustomer)
	if err != nil {
		l.Error("register_error", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, err
	}
	if err := s.Store.CreateAccount(ctx, acc); err != nil {
		return nil, err
	}

	l.Info("register_success", "account_id", acc.ID)
	return acc, nil
}

func (s *AccountService) Get(ctx context.Context, id uint) (*models.Account, error) {
	return s.Store.GetAccount(ctx, id)
}

func (s *AccountService) List(ctx context.Context, name string, offset, limit int) (int64, []models.Account, error) {
	return s.Store.ListAccounts(ctx, name, offset, limit)
}

func (s *AccountService) Update(ctx context.Context, id uint, req transport.UpdateAccountRequest) (*models.Account, error) {
	if _, err := s.Store.GetAccount(ctx, id); err != nil {
		return nil, err
	}
	check := func(email string) (bool, error) {
		taken, err := s.Store.EmailTaken(ctx, email, id)
		return !taken, err
	}
	if err := req.Validate(check); err != nil {
		return nil, err
	}
	return s.Store.UpdateAccount(ctx, id, strings.TrimSpace(req.Name), req.Email)
}

// Delete soft-deletes the account. Its ACTIVE items become REMOVED in the
// same transaction and before the account turns INACTIVE, so an inactive
// owner never has sellable items.
func (s *AccountService) Delete(ctx context.Context, id uint) error {
	l := logging.FromContext(ctx).With("svc", "accounts.delete", "account_id", id)

	var removed []models.Item
	err := s.Store.InTx(ctx, func(tx repo.Store) error {
		if _, err := tx.GetAccount(ctx, id); err != nil {
			return err
		}
		var err error
		removed, err = s.Items.removeOwned(ctx, tx, id)
		if err != nil {
			return err
		}
		return tx.DeactivateAccount(ctx, id)
	})
	if err != nil {
		return err
	}

	s.Items.reindex(ctx, removed)
	l.Info("delete_account_success", "removed_books", len(removed))
	return nil
}

// EnsureAdmin creates the bootstrap administrator unless the email is
// already registered.
func (s *AccountService) EnsureAdmin(ctx context.Context, name, email, password string) (*models.Account, error) {
	acc, err := s.Store.GetAccountByEmail(ctx, email)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	acc, err = s.newAccount(name, email, password, models.RoleCustomer, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if err := s.Store.CreateAccount(ctx, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

func (s *AccountService) newAccount(name, email, password string, roles ...models.Role) (*models.Account, error) {
	pw, err := hash.HashPassword(password)
	if err != nil {
		return nil, err
	}
	acc := &models.Account{
		Name:         strings.TrimSpace(name),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: pw,
		Status:       models.AccountActive,
	}
	for _, r := range roles {
		acc.Roles = append(acc.Roles, models.AccountRole{Role: r})
	}
	return acc, nil
}
