package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Skotchmaster/book_market/internal/apperr"
	"github.com/Skotchmaster/book_market/internal/db"
	"github.com/Skotchmaster/book_market/internal/events"
	"github.com/Skotchmaster/book_market/internal/hash"
	"github.com/Skotchmaster/book_market/internal/logging"
	"github.com/Skotchmaster/book_market/internal/models"
	"github.com/Skotchmaster/book_market/internal/repo"
	"github.com/Skotchmaster/book_market/internal/search"
	"github.com/Skotchmaster/book_market/internal/tokens"
	"github.com/Skotchmaster/book_market/internal/transport"
)

func init() {
	hash.Cost = bcrypt.MinCost
}

type fixture struct {
	store     *repo.GormRepo
	auth      *AuthService
	accounts  *AccountService
	items     *ItemService
	purchases *PurchaseService
	logs      *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := repo.New(db.NewTestDB(t))
	logs := &bytes.Buffer{}
	items := &ItemService{Store: store, Index: search.NopIndex{}}
	dispatcher := events.NewDispatcher(logging.NewWithWriter(logs, "info"))
	dispatcher.Subscribe(&SoldItemsListener{Items: items})

	return &fixture{
		store:     store,
		auth:      &AuthService{Store: store, Tokens: tokens.New([]byte("test-secret"), time.Hour)},
		accounts:  &AccountService{Store: store, Items: items},
		items:     items,
		purchases: &PurchaseService{Store: store, Events: dispatcher},
		logs:      logs,
	}
}

func (f *fixture) register(t *testing.T, email string) *models.Account {
	t.Helper()
	acc, err := f.accounts.Register(context.Background(), transport.CreateAccountRequest{
		Name: "Ann", Email: email, Password: "secret1",
	})
	require.NoError(t, err)
	return acc
}

func (f *fixture) book(t *testing.T, owner uint, price int64) *models.Item {
	t.Helper()
	it, err := f.items.Create(context.Background(), transport.CreateItemRequest{
		Name: "Book", Price: decimal.NewFromInt(price), CustomerID: owner,
	})
	require.NoError(t, err)
	return it
}

func (f *fixture) status(t *testing.T, id uint) models.ItemStatus {
	t.Helper()
	it, err := f.items.Get(context.Background(), id)
	require.NoError(t, err)
	return it.Status
}

func TestPurchase_TwoBooksEndSold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.register(t, "a@example.com")
	i1 := f.book(t, a.ID, 10)
	i2 := f.book(t, a.ID, 5)

	p, err := f.purchases.Create(ctx, transport.CreatePurchaseRequest{CustomerID: a.ID, BookIDs: []uint{i1.ID, i2.ID}})
	require.NoError(t, err)
	assert.True(t, p.Total.Equal(decimal.NewFromInt(15)), "total %s", p.Total)
	assert.Equal(t, []uint{i1.ID, i2.ID}, p.ItemIDs())

	assert.Equal(t, models.ItemSold, f.status(t, i1.ID))
	assert.Equal(t, models.ItemSold, f.status(t, i2.ID))
}

func TestPurchase_NonActiveBookRejectsWholePurchase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.register(t, "a@example.com")
	i1 := f.book(t, a.ID, 10)
	i2 := f.book(t, a.ID, 5)
	_, err := f.items.Cancel(ctx, i2.ID)
	require.NoError(t, err)

	_, err = f.purchases.Create(ctx, transport.CreatePurchaseRequest{CustomerID: a.ID, BookIDs: []uint{i1.ID, i2.ID}})
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeInvalidRequest, ae.Code)
	assert.Equal(t, "book_ids", ae.Fields[0].Field)

	var n int64
	require.NoError(t, f.store.DB.Model(&models.Purchase{}).Count(&n).Error)
	assert.Zero(t, n)
	assert.Equal(t, models.ItemActive, f.status(t, i1.ID))

	_, err = f.purchases.Create(ctx, transport.CreatePurchaseRequest{CustomerID: a.ID, BookIDs: []uint{404}})
	assert.Equal(t, apperr.CodeInvalidRequest, apperr.CodeOf(err))
}

type queuedEvents struct {
	queued []events.PurchaseCreated
}

func (q *queuedEvents) PublishPurchaseCreated(_ context.Context, ev events.PurchaseCreated) error {
	q.queued = append(q.queued, ev)
	return nil
}

func TestPurchase_SecondPurchaseBeforeDeliveryIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	queue := &queuedEvents{}
	purchases := &PurchaseService{Store: f.store, Events: queue}

	seller := f.register(t, "s@example.com")
	buyer := f.register(t, "b@example.com")
	book := f.book(t, seller.ID, 10)

	_, err := purchases.Create(ctx, transport.CreatePurchaseRequest{CustomerID: buyer.ID, BookIDs: []uint{book.ID}})
	require.NoError(t, err)
	assert.Equal(t, models.ItemActive, f.status(t, book.ID))

	_, err = purchases.Create(ctx, transport.CreatePurchaseRequest{CustomerID: seller.ID, BookIDs: []uint{book.ID}})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInvalidRequest, apperr.CodeOf(err))
	require.Len(t, queue.queued, 1)

	listener := &SoldItemsListener{Items: f.items}
	require.NoError(t, listener.HandlePurchaseCreated(ctx, queue.queued[0]))
	assert.Equal(t, models.ItemSold, f.status(t, book.ID))
}

func TestPurchase_AssignInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.register(t, "a@example.com")
	i1 := f.book(t, a.ID, 10)
	p, err := f.purchases.Create(ctx, transport.CreatePurchaseRequest{CustomerID: a.ID, BookIDs: []uint{i1.ID}})
	require.NoError(t, err)

	got, err := f.purchases.AssignInvoice(ctx, p.ID, "")
	require.NoError(t, err)
	require.NotNil(t, got.Invoice)
	assert.Contains(t, *got.Invoice, "INV-")

	got, err = f.purchases.AssignInvoice(ctx, p.ID, "NF-42")
	require.NoError(t, err)
	stored, err := f.purchases.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "NF-42", *stored.Invoice)
	assert.Equal(t, *got.Invoice, *stored.Invoice)

	_, err = f.purchases.AssignInvoice(ctx, 999, "x")
	assert.Equal(t, apperr.CodePurchaseNotFound, apperr.CodeOf(err))
}

func TestAccountDelete_CascadesAndDeactivates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.register(t, "a@example.com")
	active := f.book(t, a.ID, 10)
	sold := f.book(t, a.ID, 5)
	_, err := f.items.MarkSold(ctx, []uint{sold.ID})
	require.NoError(t, err)

	require.NoError(t, f.accounts.Delete(ctx, a.ID))

	assert.Equal(t, models.ItemRemoved, f.status(t, active.ID))
	assert.Equal(t, models.ItemSold, f.status(t, sold.ID))
	acc, err := f.accounts.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccountInactive, acc.Status)

	err = f.accounts.Delete(ctx, 999)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, apperr.CodeAccountNotFound, apperr.CodeOf(err))
}

func TestItems_CreateForDeletedAccountIsDenied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.register(t, "a@example.com")
	require.NoError(t, f.accounts.Delete(ctx, a.ID))

	_, err := f.items.Create(ctx, transport.CreateItemRequest{
		Name: "Book", Price: decimal.NewFromInt(10), CustomerID: a.ID,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.Equal(t, apperr.CodeAccessDenied, apperr.CodeOf(err))

	var n int64
	require.NoError(t, f.store.DB.Model(&models.Item{}).Where("account_id = ?", a.ID).Count(&n).Error)
	assert.Zero(t, n)
}

func TestItems_FrozenRejectEveryMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "a@example.com")

	cancelled := f.book(t, a.ID, 10)
	_, err := f.items.Cancel(ctx, cancelled.ID)
	require.NoError(t, err)

	name := "New"
	_, err = f.items.Update(ctx, cancelled.ID, transport.UpdateItemRequest{Name: &name})
	assert.Equal(t, apperr.CodeIllegalTransition, apperr.CodeOf(err))

	for _, op := range []func(context.Context, []uint) ([]models.Item, error){f.items.MarkSold, f.items.MarkRemoved} {
		_, err := op(ctx, []uint{cancelled.ID})
		assert.Equal(t, apperr.CodeIllegalTransition, apperr.CodeOf(err))
	}
	_, err = f.items.Cancel(ctx, cancelled.ID)
	assert.Equal(t, apperr.CodeIllegalTransition, apperr.CodeOf(err))
}

func TestItems_ListByAccountStatusFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "a@example.com")
	f.book(t, a.ID, 10)
	s := f.book(t, a.ID, 5)
	_, err := f.items.MarkSold(ctx, []uint{s.ID})
	require.NoError(t, err)

	total, items, err := f.items.ListByAccount(ctx, a.ID, "sold", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, s.ID, items[0].ID)

	_, _, err = f.items.ListByAccount(ctx, a.ID, "LOST", 0, 10)
	assert.Equal(t, apperr.CodeInvalidItemStatus, apperr.CodeOf(err))

	_, _, err = f.items.ListByAccount(ctx, 999, "", 0, 10)
	assert.Equal(t, apperr.CodeAccountNotFound, apperr.CodeOf(err))

	total, _, err = f.items.ListActive(ctx, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "a@example.com")

	_, err := f.auth.Login(ctx, "a@example.com", "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	assert.Equal(t, apperr.CodeAuthentication, apperr.CodeOf(err))

	_, err = f.auth.Login(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	res, err := f.auth.Login(ctx, "A@example.com", "secret1")
	require.NoError(t, err)
	sub, err := f.auth.Tokens.SubjectOf(res.Token)
	require.NoError(t, err)
	assert.Equal(t, a.ID, sub)

	require.NoError(t, f.accounts.Delete(ctx, a.ID))
	_, err = f.auth.Login(ctx, "a@example.com", "secret1")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestAccounts_RegisterUpdateAndAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.register(t, "a@example.com")
	assert.True(t, a.HasRole(models.RoleCustomer))
	assert.False(t, a.HasRole(models.RoleAdmin))

	_, err := f.accounts.Register(ctx, transport.CreateAccountRequest{Name: "B", Email: "a@example.com", Password: "secret1"})
	assert.Equal(t, apperr.CodeInvalidRequest, apperr.CodeOf(err))

	free, err := f.accounts.EmailAvailable(ctx, "b@example.com")
	require.NoError(t, err)
	assert.True(t, free)

	updated, err := f.accounts.Update(ctx, a.ID, transport.UpdateAccountRequest{Name: "Annie", Email: "a@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Annie", updated.Name)

	admin, err := f.accounts.EnsureAdmin(ctx, "Admin", "root@example.com", "secret1")
	require.NoError(t, err)
	assert.True(t, admin.HasRole(models.RoleAdmin))
	again, err := f.accounts.EnsureAdmin(ctx, "Admin", "root@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, again.ID)

	total, list, err := f.accounts.List(ctx, "ann", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, a.ID, list[0].ID)
}

type failingIndex struct{ search.NopIndex }

func (failingIndex) Enabled() bool { return true }

func (failingIndex) Search(context.Context, string, int, int) (int64, []models.Item, error) {
	return 0, nil, assert.AnError
}

func TestItems_SearchFallsBackToDatabase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "a@example.com")
	f.book(t, a.ID, 10)
	f.items.Index = failingIndex{}

	total, items, err := f.items.Search(ctx, "boo", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, items, 1)
}
