package tokens

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Skotchmaster/book_market/internal/apperr"
)

const invalidTokenMessage = "Invalid token"

// Service issues and validates stateless bearer tokens. Claims carry only
// the account id (sub) and expiry (exp). Safe for concurrent use.
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now, mainly for tests around the expiry boundary.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(secret []byte, ttl time.Duration, opts ...Option) *Service {
	s := &Service{secret: secret, ttl: ttl, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) TTL() time.Duration { return s.ttl }

func (s *Service) Issue(accountID uint) (string, time.Time, error) {
	exp := s.now().Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(accountID), 10),
		ExpiresAt: jwt.NewNumericDate(exp),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return token, claims.ExpiresAt.Time, nil
}

// Validate fails closed: bad signature, missing sub or exp, and now >= exp all
// yield the same authentication error with code 999.
func (s *Service) Validate(token string) error {
	_, err := s.claims(token)
	return err
}

func (s *Service) IsValid(token string) bool {
	return s.Validate(token) == nil
}

// SubjectOf returns the account id carried by an already validated token.
func (s *Service) SubjectOf(token string) (uint, error) {
	claims, err := s.claims(token)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return 0, apperr.Authentication(invalidTokenMessage, err)
	}
	return uint(id), nil
}

func (s *Service) claims(token string) (*jwt.RegisteredClaims, error) {
	var claims jwt.RegisteredClaims
	tkn, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS512.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return s.secret, nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !tkn.Valid {
		return nil, apperr.Authentication(invalidTokenMessage, err)
	}
	if claims.Subject == "" {
		return nil, apperr.Authentication(invalidTokenMessage, errors.New("token has no subject"))
	}
	return &claims, nil
}
