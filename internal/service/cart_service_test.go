package service

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shasan419/qkart/internal/apierror"
	"github.com/shasan419/qkart/internal/cache"
	"github.com/shasan419/qkart/internal/catalog"
	"github.com/shasan419/qkart/internal/domain"
	"github.com/shasan419/qkart/internal/events"
	"github.com/shasan419/qkart/internal/repository"
)

type mockCartStore struct {
	m     sync.RWMutex
	carts map[string]*domain.Cart
	// refill restores cleared items on save, simulating a user who
	// immediately re-adds after checkout; used by the concurrency test.
	refill   bool
	failSave bool
	// onSave runs at the start of every save; tests use it to cancel
	// the request context mid-checkout.
	onSave func()
}

func newMockCartStore() *mockCartStore {
	return &mockCartStore{carts: make(map[string]*domain.Cart)}
}

func copyCart(c *domain.Cart) *domain.Cart {
	cp := *c
	cp.Items = append([]domain.CartItem(nil), c.Items...)
	return &cp
}

func (m *mockCartStore) FindCart(_ context.Context, email string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	cart, ok := m.carts[email]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	return copyCart(cart), nil
}

func (m *mockCartStore) GetOrCreateCart(_ context.Context, email string) (*domain.Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	cart, ok := m.carts[email]
	if !ok {
		cart = &domain.Cart{Email: email, Items: []domain.CartItem{}}
		m.carts[email] = cart
	}
	return copyCart(cart), nil
}

func (m *mockCartStore) SaveCart(_ context.Context, cart *domain.Cart) (*domain.Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.onSave != nil {
		m.onSave()
	}
	if m.failSave {
		return nil, assert.AnError
	}
	if m.refill && len(cart.Items) == 0 {
		if prev, ok := m.carts[cart.Email]; ok {
			return copyCart(prev), nil
		}
	}
	m.carts[cart.Email] = copyCart(cart)
	return copyCart(cart), nil
}

type mockUserStore struct {
	m     sync.Mutex
	users map[string]*domain.User
}

func newMockUserStore(users ...*domain.User) *mockUserStore {
	s := &mockUserStore{users: make(map[string]*domain.User)}
	for _, u := range users {
		cp := *u
		s.users[u.Email] = &cp
	}
	return s
}

func (m *mockUserStore) FindUser(_ context.Context, email string) (*domain.User, error) {
	m.m.Lock()
	defer m.m.Unlock()
	user, ok := m.users[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (m *mockUserStore) CreateUser(_ context.Context, user *domain.User) (*domain.User, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if _, ok := m.users[user.Email]; ok {
		return nil, repository.ErrEmailTaken
	}
	cp := *user
	m.users[user.Email] = &cp
	return user, nil
}

func (m *mockUserStore) IsEmailTaken(_ context.Context, email string) (bool, error) {
	m.m.Lock()
	defer m.m.Unlock()
	_, ok := m.users[email]
	return ok, nil
}

func (m *mockUserStore) SetAddress(_ context.Context, email, address string) error {
	m.m.Lock()
	defer m.m.Unlock()
	user, ok := m.users[email]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.Address = address
	return nil
}

func (m *mockUserStore) DebitWallet(_ context.Context, email string, amount float64) error {
	m.m.Lock()
	defer m.m.Unlock()
	user, ok := m.users[email]
	if !ok || user.WalletMoney < amount {
		return repository.ErrInsufficientFunds
	}
	user.WalletMoney -= amount
	return nil
}

func (m *mockUserStore) CreditWallet(ctx context.Context, email string, amount float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.m.Lock()
	defer m.m.Unlock()
	user, ok := m.users[email]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.WalletMoney += amount
	return nil
}

func (m *mockUserStore) wallet(email string) float64 {
	m.m.Lock()
	defer m.m.Unlock()
	return m.users[email].WalletMoney
}

type mockLookup struct {
	products map[int64]*domain.Product
}

func (m *mockLookup) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return p, nil
}

func (m *mockLookup) GetAllProducts(context.Context) ([]*domain.Product, error) {
	var out []*domain.Product
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

type mockCache struct {
	m     sync.Mutex
	carts map[string]*domain.Cart
}

func newMockCache() *mockCache {
	return &mockCache{carts: make(map[string]*domain.Cart)}
}

func (m *mockCache) Get(_ context.Context, email string) (*domain.Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	cart, ok := m.carts[email]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return cart, nil
}

func (m *mockCache) Set(_ context.Context, email string, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.carts[email] = cart
	return nil
}

func (m *mockCache) Delete(_ context.Context, email string) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.carts, email)
	return nil
}

type mockOutbox struct {
	m      sync.Mutex
	events []events.CheckoutEvent
}

func (m *mockOutbox) Append(_ context.Context, event events.CheckoutEvent) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *mockOutbox) FetchUnpublished(context.Context, int64) ([]events.CheckoutEvent, error) {
	return nil, nil
}

func (m *mockOutbox) MarkPublished(context.Context, string) error {
	return nil
}

var testProducts = map[int64]*domain.Product{
	1: {ID: 1, Name: "Running Shoes", Cost: 100},
	2: {ID: 2, Name: "Badminton Racquet", Cost: 50},
}

func testUser(wallet float64, address string) *domain.User {
	if address == "" {
		address = domain.DefaultAddress
	}
	return &domain.User{
		Name:        "Crio Dev",
		Email:       "crio-user@gmail.com",
		WalletMoney: wallet,
		Address:     address,
	}
}

func newTestService(carts *mockCartStore, users *mockUserStore, outbox *mockOutbox) *CartService {
	if outbox == nil {
		outbox = &mockOutbox{}
	}
	return NewCartService(carts, users, &mockLookup{products: testProducts}, newMockCache(), outbox)
}

func assertAPIError(t *testing.T, err error, status int) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, status, apierror.StatusOf(err))
}

func TestGetCartByUser_NotFound(t *testing.T) {
	svc := newTestService(newMockCartStore(), newMockUserStore(), nil)

	cart, err := svc.GetCartByUser(context.Background(), testUser(500, ""))

	assertAPIError(t, err, http.StatusNotFound)
	assert.Nil(t, cart)
}

func TestAddProductToCart_CreatesCartOnFirstAdd(t *testing.T) {
	carts := newMockCartStore()
	svc := newTestService(carts, newMockUserStore(), nil)
	user := testUser(500, "")

	cart, err := svc.AddProductToCart(context.Background(), user, 1, 2)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(1), cart.Items[0].Product.ID)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, float64(100), cart.Items[0].Product.Cost)
	assert.NotEmpty(t, cart.Items[0].ID)
}

func TestAddProductToCart_UnknownProduct(t *testing.T) {
	carts := newMockCartStore()
	svc := newTestService(carts, newMockUserStore(), nil)

	cart, err := svc.AddProductToCart(context.Background(), testUser(500, ""), 999, 1)

	assertAPIError(t, err, http.StatusBadRequest)
	assert.Nil(t, cart)
	// The missing-product check comes first, so no cart was created.
	_, err = carts.FindCart(context.Background(), "crio-user@gmail.com")
	assert.ErrorIs(t, err, repository.ErrCartNotFound)
}

func TestAddProductToCart_DuplicateFails(t *testing.T) {
	carts := newMockCartStore()
	svc := newTestService(carts, newMockUserStore(), nil)
	user := testUser(500, "")
	ctx := context.Background()

	_, err := svc.AddProductToCart(ctx, user, 1, 2)
	require.NoError(t, err)

	_, err = svc.AddProductToCart(ctx, user, 1, 3)
	assertAPIError(t, err, http.StatusBadRequest)

	cart, err := carts.FindCart(ctx, user.Email)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
}

func TestUpdateProductInCart_NoCart(t *testing.T) {
	svc := newTestService(newMockCartStore(), newMockUserStore(), nil)

	_, err := svc.UpdateProductInCart(context.Background(), testUser(500, ""), 1, 5)

	assertAPIError(t, err, http.StatusBadRequest)
}

func TestUpdateProductInCart_NotInCart(t *testing.T) {
	carts := newMockCartStore()
	svc := newTestService(carts, newMockUserStore(), nil)
	user := testUser(500, "")
	ctx := context.Background()

	_, err := svc.AddProductToCart(ctx, user, 1, 2)
	require.NoError(t, err)

	_, err = svc.UpdateProductInCart(ctx, user, 2, 5)
	assertAPIError(t, err, http.StatusBadRequest)

	cart, err := carts.FindCart(ctx, user.Email)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
}

func TestUpdateProductInCart_ReplacesQuantity(t *testing.T) {
	carts := newMockCartStore()
	svc := newTestService(carts, newMockUserStore(), nil)
	user := testUser(500, "")
	ctx := context.Background()

	_, err := svc.AddProductToCart(ctx, user, 1, 2)
	require.NoError(t, err)

	cart, err := svc.UpdateProductInCart(ctx, user, 1, 7)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 7, cart.Items[0].Quantity)
}

func TestDeleteProductFromCart_RemovesOnlyMatch(t *testing.T) {
	carts := newMockCartStore()
	svc := newTestService(carts, newMockUserStore(), nil)
	user := testUser(500, "")
	ctx := context.Background()

	_, err := svc.AddProductToCart(ctx, user, 1, 2)
	require.NoError(t, err)
	_, err = svc.AddProductToCart(ctx, user, 2, 1)
	require.NoError(t, err)

	cart, err := svc.DeleteProductFromCart(ctx, user, 1)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(2), cart.Items[0].Product.ID)
}

func TestDeleteProductFromCart_OnlyItemLeavesEmptyCart(t *testing.T) {
	svc := newTestService(newMockCartStore(), newMockUserStore(), nil)
	user := testUser(500, "")
	ctx := context.Background()

	_, err := svc.AddProductToCart(ctx, user, 1, 2)
	require.NoError(t, err)

	cart, err := svc.DeleteProductFromCart(ctx, user, 1)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestDeleteProductFromCart_NotInCart(t *testing.T) {
	carts := newMockCartStore()
	svc := newTestService(carts, newMockUserStore(), nil)
	user := testUser(500, "")
	ctx := context.Background()

	// Other products in the cart must not make removal fail early.
	_, err := svc.AddProductToCart(ctx, user, 2, 1)
	require.NoError(t, err)

	_, err = svc.DeleteProductFromCart(ctx, user, 1)
	assertAPIError(t, err, http.StatusBadRequest)

	cart, err := carts.FindCart(ctx, user.Email)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(2), cart.Items[0].Product.ID)
}

func TestCheckout_NoCart(t *testing.T) {
	svc := newTestService(newMockCartStore(), newMockUserStore(testUser(500, "Flat 1, Some Street, Bangalore")), nil)

	_, err := svc.Checkout(context.Background(), testUser(500, ""))

	assertAPIError(t, err, http.StatusNotFound)
}

func TestCheckout_EmptyCart(t *testing.T) {
	user := testUser(500, "Flat 1, Some Street, Bangalore")
	users := newMockUserStore(user)
	carts := newMockCartStore()
	svc := newTestService(carts, users, nil)
	ctx := context.Background()

	_, err := svc.AddProductToCart(ctx, user, 1, 1)
	require.NoError(t, err)
	_, err = svc.DeleteProductFromCart(ctx, user, 1)
	require.NoError(t, err)

	_, err = svc.Checkout(ctx, user)
	assertAPIError(t, err, http.StatusBadRequest)
	assert.Contains(t, err.Error(), "empty")
}

func TestCheckout_DefaultAddressFailsBeforeBalanceCheck(t *testing.T) {
	// Wallet of zero: if the balance were checked first this would
	// surface the wrong error.
	user := testUser(0, "")
	users := newMockUserStore(user)
	svc := newTestService(newMockCartStore(), users, nil)
	ctx := context.Background()

	_, err := svc.AddProductToCart(ctx, user, 1, 1)
	require.NoError(t, err)

	_, err = svc.Checkout(ctx, user)
	assertAPIError(t, err, http.StatusBadRequest)
	assert.Contains(t, err.Error(), "Address")
}

func TestCheckout_InsufficientBalance(t *testing.T) {
	user := testUser(200, "Flat 1, Some Street, Bangalore")
	users := newMockUserStore(user)
	carts := newMockCartStore()
	svc := newTestService(carts, users, nil)
	ctx := context.Background()

	// Total = 2×100 + 1×50 = 250, wallet = 200.
	_, err := svc.AddProductToCart(ctx, user, 1, 2)
	require.NoError(t, err)
	_, err = svc.AddProductToCart(ctx, user, 2, 1)
	require.NoError(t, err)

	_, err = svc.Checkout(ctx, user)
	assertAPIError(t, err, http.StatusBadRequest)

	assert.Equal(t, float64(200), users.wallet(user.Email))
	cart, err := carts.FindCart(ctx, user.Email)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)
}

func TestCheckout_Success(t *testing.T) {
	user := testUser(300, "Flat 1, Some Street, Bangalore")
	users := newMockUserStore(user)
	carts := newMockCartStore()
	outbox := &mockOutbox{}
	svc := newTestService(carts, users, outbox)
	ctx := context.Background()

	_, err := svc.AddProductToCart(ctx, user, 1, 2)
	require.NoError(t, err)
	_, err = svc.AddProductToCart(ctx, user, 2, 1)
	require.NoError(t, err)

	cart, err := svc.Checkout(ctx, user)
	require.NoError(t, err)

	assert.Empty(t, cart.Items)
	assert.Equal(t, float64(50), users.wallet(user.Email))

	require.Len(t, outbox.events, 1)
	assert.Equal(t, float64(250), outbox.events[0].TotalAmount)
	assert.Equal(t, 2, outbox.events[0].ItemCount)
}

func TestCheckout_CompensatesWhenCartClearFails(t *testing.T) {
	user := testUser(300, "Flat 1, Some Street, Bangalore")
	users := newMockUserStore(user)
	carts := newMockCartStore()
	svc := newTestService(carts, users, nil)
	ctx := context.Background()

	_, err := svc.AddProductToCart(ctx, user, 1, 2)
	require.NoError(t, err)

	carts.failSave = true
	_, err = svc.Checkout(ctx, user)
	assertAPIError(t, err, http.StatusInternalServerError)

	// The debit was rolled back, neither write is left applied alone.
	assert.Equal(t, float64(300), users.wallet(user.Email))
}

func TestCheckout_CompensatesWhenRequestContextDies(t *testing.T) {
	user := testUser(300, "Flat 1, Some Street, Bangalore")
	users := newMockUserStore(user)
	carts := newMockCartStore()
	svc := newTestService(carts, users, nil)

	_, err := svc.AddProductToCart(context.Background(), user, 1, 2)
	require.NoError(t, err)

	// The request context expires while the cart clear is in flight,
	// which is how the clear fails in practice. The refund must not be
	// tied to that context or it would fail with it.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	carts.failSave = true
	carts.onSave = cancel

	_, err = svc.Checkout(ctx, user)
	assertAPIError(t, err, http.StatusInternalServerError)

	assert.Equal(t, float64(300), users.wallet(user.Email))
}

func TestCheckout_ReleasesUserLock(t *testing.T) {
	user := testUser(300, "Flat 1, Some Street, Bangalore")
	users := newMockUserStore(user)
	carts := newMockCartStore()
	svc := newTestService(carts, users, nil)
	ctx := context.Background()

	_, err := svc.AddProductToCart(ctx, user, 1, 1)
	require.NoError(t, err)

	_, err = svc.Checkout(ctx, user)
	require.NoError(t, err)

	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Empty(t, svc.locks)
}

func TestCheckout_ConcurrentCallsCannotOverspend(t *testing.T) {
	user := testUser(250, "Flat 1, Some Street, Bangalore")
	users := newMockUserStore(user)
	carts := newMockCartStore()
	svc := newTestService(carts, users, nil)
	ctx := context.Background()

	// One cart costing 100; the store refills it after every checkout
	// so each concurrent call sees a full cart.
	_, err := svc.AddProductToCart(ctx, user, 1, 1)
	require.NoError(t, err)
	carts.refill = true

	const n = 10
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Checkout(ctx, user)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
		}
	}

	// Balance 250, cart total 100: at most ⌊250/100⌋ = 2 checkouts may
	// ever succeed.
	assert.LessOrEqual(t, successes, 2)
	assert.GreaterOrEqual(t, users.wallet(user.Email), float64(0))

	// Every in-flight checkout released its lock entry.
	svc.mu.Lock()
	assert.Empty(t, svc.locks)
	svc.mu.Unlock()
}
