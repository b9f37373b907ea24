package service

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/book_market/internal/apperr"
	"github.com/Skotchmaster/book_market/internal/hash"
	"github.com/Skotchmaster/book_market/internal/logging"
	"github.com/Skotchmaster/book_market/internal/models"
	"github.com/Skotchmaster/book_market/internal/repo"
	"github.com/Skotchmaster/book_market/internal/tokens"
)

type AuthService struct {
	Store  repo.Store
	Tokens *tokens.Service
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Account   *models.Account
}

var errBadCredentials = errors.New("invalid credentials")

// Login never tells the caller which part of the credential was wrong.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	acc, err := s.Store.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("login_failed", "status", 401, "reason", "unknown email")
			return nil, apperr.Authentication("Invalid credentials", errBadCredentials)
		}
		l.Error("login_failed", "status", 500, "reason", "cannot load account", "error", err)
		return nil, err
	}

	if !hash.CheckPassword(acc.PasswordHash, password) {
		l.Warn("login_failed", "status", 401, "reason", "wrong password", "account_id", acc.ID)
		return nil, apperr.Authentication("Invalid credentials", errBadCredentials)
	}
	if !acc.IsActive() {
		l.Warn("login_failed", "status", 401, "reason", "account inactive", "account_id", acc.ID)
		return nil, apperr.Authentication("Invalid credentials", errBadCredentials)
	}

	token, exp, err := s.Tokens.Issue(acc.ID)
	if err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot sign token", "error", err)
		return nil, err
	}

	l.Info("login_success", "account_id", acc.ID)
	return &LoginResult{Token: token, ExpiresAt: exp, Account: acc}, nil
}
