package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Skotchmaster/book_market/internal/db"
	"github.com/Skotchmaster/book_market/internal/events"
	"github.com/Skotchmaster/book_market/internal/hash"
	"github.com/Skotchmaster/book_market/internal/logging"
	authmw "github.com/Skotchmaster/book_market/internal/middleware/auth"
	"github.com/Skotchmaster/book_market/internal/models"
	"github.com/Skotchmaster/book_market/internal/repo"
	"github.com/Skotchmaster/book_market/internal/search"
	"github.com/Skotchmaster/book_market/internal/service"
	"github.com/Skotchmaster/book_market/internal/tokens"
)

type testServer struct {
	e        *echo.Echo
	accounts *service.AccountService
	items    *service.ItemService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	hash.Cost = bcrypt.MinCost

	logger := logging.NewWithWriter(io.Discard, "error")
	store := repo.New(db.NewTestDB(t))
	tok := tokens.New([]byte("server-test-secret"), time.Hour)

	items := &service.ItemService{Store: store, Index: search.NopIndex{}}
	accounts := &service.AccountService{Store: store, Items: items}
	dispatcher := events.NewDispatcher(logger, &service.SoldItemsListener{Items: items})
	purchases := &service.PurchaseService{Store: store, Events: dispatcher}

	e := New(&Deps{
		Logger: logger,
		Routes: authmw.DefaultRoutes(),
		Tokens: tok,
		Loader: store,

		AuthHandler:     &AuthHTTP{Svc: &service.AuthService{Store: store, Tokens: tok}},
		AccountHandler:  &AccountHTTP{Svc: accounts, Items: items},
		ItemHandler:     &ItemHTTP{Svc: items},
		PurchaseHandler: &PurchaseHTTP{Svc: purchases},
		AdminHandler:    &AdminHTTP{Accounts: accounts, Purchases: purchases},
	})
	return &testServer{e: e, accounts: accounts, items: items}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func (s *testServer) register(t *testing.T, email string) uint {
	t.Helper()
	rec, body := s.do(t, http.MethodPost, "/customers", "", map[string]any{
		"name": "Ann", "email": email, "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return uint(body["id"].(float64))
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	rec, body := s.do(t, http.MethodPost, "/login", "", map[string]any{"email": email, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return body["token"].(string)
}

func (s *testServer) createBook(t *testing.T, token string, price string) uint {
	t.Helper()
	rec, body := s.do(t, http.MethodPost, "/books", token, map[string]any{"name": "Book " + price, "price": price})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return uint(body["id"].(float64))
}

func path(parts ...any) string {
	var b bytes.Buffer
	for _, p := range parts {
		switch v := p.(type) {
		case string:
			b.WriteString(v)
		case uint:
			b.WriteString(strconv.FormatUint(uint64(v), 10))
		}
	}
	return b.String()
}

func TestLoginThenGateAcceptsToken(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "ann@example.com")

	rec, body := s.do(t, http.MethodPost, "/login", "", map[string]any{"email": "ann@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "999", body["internal_code"])

	token := s.login(t, "ann@example.com", "secret1")

	rec, _ = s.do(t, http.MethodGet, "/books/active", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body = s.do(t, http.MethodGet, "/books/active", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "999", body["internal_code"])

	rec, _ = s.do(t, http.MethodGet, "/books", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "ann@example.com")
	customer := s.login(t, "ann@example.com", "secret1")

	rec, body := s.do(t, http.MethodGet, "/admins/report", customer, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "ML-000", body["internal_code"])
	assert.Equal(t, "Access Denied", body["message"])

	_, err := s.accounts.EnsureAdmin(context.Background(), "Root", "root@example.com", "secret1")
	require.NoError(t, err)
	admin := s.login(t, "root@example.com", "secret1")

	rec, _ = s.do(t, http.MethodGet, "/admins/report", admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Only admin")

	rec, body = s.do(t, http.MethodGet, "/admins/customers?name=ann", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"], 1)
}

func TestPurchaseFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	sellerID := s.register(t, "seller@example.com")
	buyerID := s.register(t, "buyer@example.com")
	s.register(t, "other@example.com")
	seller := s.login(t, "seller@example.com", "secret1")
	buyer := s.login(t, "buyer@example.com", "secret1")
	other := s.login(t, "other@example.com", "secret1")

	b1 := s.createBook(t, seller, "10")
	b2 := s.createBook(t, seller, "5")

	rec, body := s.do(t, http.MethodPost, "/purchases", buyer, map[string]any{"customer_id": sellerID, "book_ids": []uint{b1, b2}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "ML-000", body["internal_code"])

	rec, body = s.do(t, http.MethodPost, "/purchases", buyer, map[string]any{"book_ids": []uint{b1, b2}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "15", body["total"])
	assert.EqualValues(t, buyerID, body["customer_id"])
	purchaseID := uint(body["id"].(float64))

	for _, id := range []uint{b1, b2} {
		rec, body = s.do(t, http.MethodGet, path("/books/", id), buyer, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, string(models.ItemSold), body["status"])
	}

	rec, body = s.do(t, http.MethodPost, "/purchases", buyer, map[string]any{"book_ids": []uint{b1}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "ML-001", body["internal_code"])

	rec, _ = s.do(t, http.MethodGet, path("/purchases/", purchaseID), buyer, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, body = s.do(t, http.MethodGet, path("/purchases/", purchaseID), other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "ML-000", body["internal_code"])

	rec, body = s.do(t, http.MethodGet, "/purchases/999", other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "ML-000", body["internal_code"])

	_, err := s.accounts.EnsureAdmin(context.Background(), "Root", "root@example.com", "secret1")
	require.NoError(t, err)
	admin := s.login(t, "root@example.com", "secret1")
	rec, _ = s.do(t, http.MethodGet, path("/purchases/", purchaseID), admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, body = s.do(t, http.MethodGet, "/purchases/999", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ML-301", body["internal_code"])

	rec, body = s.do(t, http.MethodDelete, path("/books/", b1), seller, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ML-102", body["internal_code"])
}

func TestCustomerRoutes(t *testing.T) {
	s := newTestServer(t)
	annID := s.register(t, "ann@example.com")
	bobID := s.register(t, "bob@example.com")
	ann := s.login(t, "ann@example.com", "secret1")

	rec, body := s.do(t, http.MethodPost, "/customers", "", map[string]any{"name": "Dup", "email": "ann@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "ML-001", body["internal_code"])

	rec, body = s.do(t, http.MethodGet, path("/customers/", bobID), ann, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "ML-000", body["internal_code"])

	rec, body = s.do(t, http.MethodPut, path("/customers/", annID), ann, map[string]any{"name": "Annie", "email": "ann@example.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Annie", body["name"])

	book := s.createBook(t, ann, "7.50")

	rec, body = s.do(t, http.MethodGet, path("/customers/", annID, "/books?status=lost"), ann, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ML-002", body["internal_code"])

	rec, body = s.do(t, http.MethodGet, path("/customers/", annID, "/books?status=active"), ann, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"], 1)

	rec, _ = s.do(t, http.MethodDelete, path("/customers/", annID), ann, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	it, err := s.items.Get(context.Background(), book)
	require.NoError(t, err)
	assert.Equal(t, models.ItemRemoved, it.Status)

	rec, body = s.do(t, http.MethodGet, path("/customers/", annID), ann, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "inactive accounts lose access")
	assert.Equal(t, "999", body["internal_code"])
}

func TestBookOwnership(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "ann@example.com")
	s.register(t, "bob@example.com")
	ann := s.login(t, "ann@example.com", "secret1")
	bob := s.login(t, "bob@example.com", "secret1")

	book := s.createBook(t, ann, "10")

	rec, body := s.do(t, http.MethodPut, path("/books/", book), bob, map[string]any{"name": "Mine"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "ML-000", body["internal_code"])

	rec, body = s.do(t, http.MethodPut, path("/books/", book), ann, map[string]any{"name": "Renamed", "price": "12.00"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Renamed", body["name"])

	rec, _ = s.do(t, http.MethodDelete, path("/books/", book), ann, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, body = s.do(t, http.MethodPut, path("/books/", book), ann, map[string]any{"name": "Again"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ML-102", body["internal_code"])

	rec, body = s.do(t, http.MethodGet, "/books/999", ann, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ML-101", body["internal_code"])

	rec, body = s.do(t, http.MethodGet, "/books/search?q=renamed", ann, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"], 1)
}
