package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/shasan419/qkart/internal/apierror"
	"github.com/shasan419/qkart/internal/cache"
	"github.com/shasan419/qkart/internal/catalog"
	"github.com/shasan419/qkart/internal/domain"
	"github.com/shasan419/qkart/internal/events"
	"github.com/shasan419/qkart/internal/repository"
)

// CartService implements the cart business rules: one item per product,
// positive quantities, and an all-or-nothing checkout against the user's
// wallet.
type CartService struct {
	carts   repository.CartStore
	users   repository.UserStore
	catalog catalog.Lookup
	cache   cache.CartCache
	outbox  events.Outbox // optional, nil disables checkout events
	sfg     singleflight.Group

	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func NewCartService(
	carts repository.CartStore,
	users repository.UserStore,
	lookup catalog.Lookup,
	cartCache cache.CartCache,
	outbox events.Outbox,
) *CartService {
	return &CartService{
		carts:   carts,
		users:   users,
		catalog: lookup,
		cache:   cartCache,
		outbox:  outbox,
		locks:   make(map[string]*userLock),
	}
}

// GetCartByUser returns the user's cart, or NotFound when the user has
// never added a product.
func (s *CartService) GetCartByUser(ctx context.Context, user *domain.User) (*domain.Cart, error) {
	// Singleflight collapses concurrent cache misses for the same user.
	v, err, _ := s.sfg.Do(user.Email, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, user.Email)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("cache get error: %v", err)
		}

		cart, err = s.carts.FindCart(ctx, user.Email)
		if err != nil {
			return nil, err
		}

		// The fill is asynchronous, so it can land after a concurrent
		// mutation's invalidate and re-install the cart it read. The
		// entry TTL bounds how long that stale copy can live.
		go func() {
			if errSet := s.cache.Set(context.Background(), user.Email, cart); errSet != nil {
				log.Printf("cache set error: %v", errSet)
			}
		}()

		return cart, nil
	})

	if err != nil {
		if errors.Is(err, repository.ErrCartNotFound) {
			return nil, apierror.NotFound("User does not have a cart")
		}
		return nil, apierror.Internal("failed to fetch cart")
	}

	return v.(*domain.Cart), nil
}

// AddProductToCart appends a new line item for productID. The product
// must exist in the catalog and must not already be in the cart; the
// cart itself is created on first add.
func (s *CartService) AddProductToCart(ctx context.Context, user *domain.User, productID int64, quantity int) (*domain.Cart, error) {
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return nil, apierror.InvalidRequest("Product doesn't exist in database")
		}
		return nil, apierror.Internal("failed to look up product")
	}

	cart, err := s.carts.GetOrCreateCart(ctx, user.Email)
	if err != nil {
		log.Printf("cart creation failed for %s: %v", user.Email, err)
		return nil, apierror.Internal("failed to create cart")
	}

	if cart.FindItem(productID) >= 0 {
		return nil, apierror.InvalidRequest("Product already in cart. Use the cart sidebar to update or remove product from cart")
	}

	cart.Items = append(cart.Items, domain.CartItem{
		ID:       uuid.NewString(),
		Product:  *product,
		Quantity: quantity,
		AddedAt:  time.Now(),
	})

	saved, err := s.carts.SaveCart(ctx, cart)
	if err != nil {
		return nil, apierror.Internal("failed to save cart")
	}

	s.invalidateCache(user.Email)
	return saved, nil
}

// UpdateProductInCart replaces the quantity of an item already in the
// cart. Quantity positivity is validated upstream.
func (s *CartService) UpdateProductInCart(ctx context.Context, user *domain.User, productID int64, quantity int) (*domain.Cart, error) {
	cart, err := s.carts.FindCart(ctx, user.Email)
	if err != nil {
		if errors.Is(err, repository.ErrCartNotFound) {
			return nil, apierror.InvalidRequest("User does not have a cart. Use POST to create cart and add a product")
		}
		return nil, apierror.Internal("failed to fetch cart")
	}

	if _, err := s.catalog.GetProduct(ctx, productID); err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return nil, apierror.InvalidRequest("Product doesn't exist in database")
		}
		return nil, apierror.Internal("failed to look up product")
	}

	idx := cart.FindItem(productID)
	if idx < 0 {
		return nil, apierror.InvalidRequest("Product not in cart")
	}
	cart.Items[idx].Quantity = quantity

	saved, err := s.carts.SaveCart(ctx, cart)
	if err != nil {
		return nil, apierror.Internal("failed to save cart")
	}

	s.invalidateCache(user.Email)
	return saved, nil
}

// DeleteProductFromCart removes the one item holding productID, leaving
// every other item untouched.
func (s *CartService) DeleteProductFromCart(ctx context.Context, user *domain.User, productID int64) (*domain.Cart, error) {
	cart, err := s.carts.FindCart(ctx, user.Email)
	if err != nil {
		if errors.Is(err, repository.ErrCartNotFound) {
			return nil, apierror.InvalidRequest("User does not have a cart")
		}
		return nil, apierror.Internal("failed to fetch cart")
	}

	idx := cart.FindItem(productID)
	if idx < 0 {
		return nil, apierror.InvalidRequest("Product not in cart")
	}
	cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)

	saved, err := s.carts.SaveCart(ctx, cart)
	if err != nil {
		return nil, apierror.Internal("failed to save cart")
	}

	s.invalidateCache(user.Email)
	return saved, nil
}

// Checkout debits the wallet by the cart total and empties the cart.
// Checkout for one user is serialized by a per-user lock, and the debit
// itself is conditional on the balance, so concurrent calls can never
// spend more than the wallet holds.
func (s *CartService) Checkout(ctx context.Context, user *domain.User) (*domain.Cart, error) {
	lock := s.lockUser(user.Email)
	defer s.unlockUser(user.Email, lock)

	cart, err := s.carts.FindCart(ctx, user.Email)
	if err != nil {
		if errors.Is(err, repository.ErrCartNotFound) {
			return nil, apierror.NotFound("User does not have a cart")
		}
		return nil, apierror.Internal("failed to fetch cart")
	}

	if len(cart.Items) == 0 {
		return nil, apierror.InvalidRequest("Cart is empty")
	}

	// Re-read the account under the lock; the request-time user may be
	// stale.
	account, err := s.users.FindUser(ctx, user.Email)
	if err != nil {
		return nil, apierror.Internal("failed to fetch user")
	}

	if !account.HasNonDefaultAddress() {
		return nil, apierror.InvalidRequest("Address not set")
	}

	total := cart.Total()
	if account.WalletMoney < total {
		return nil, apierror.InvalidRequest("Wallet balance is insufficient")
	}

	if err := s.users.DebitWallet(ctx, user.Email, total); err != nil {
		if errors.Is(err, repository.ErrInsufficientFunds) {
			return nil, apierror.InvalidRequest("Wallet balance is insufficient")
		}
		return nil, apierror.Internal("failed to debit wallet")
	}

	itemCount := len(cart.Items)
	cart.Items = []domain.CartItem{}
	saved, err := s.carts.SaveCart(ctx, cart)
	if err != nil {
		// The debit landed but the cart clear did not; put the money
		// back so neither side is left applied alone. The clear usually
		// fails because the request context is already dead, so the
		// credit runs on its own context.
		s.compensateDebit(user.Email, total)
		return nil, apierror.Internal("failed to commit checkout")
	}

	if s.outbox != nil {
		event := events.NewCheckoutEvent(user.Email, total, itemCount)
		if errAppend := s.outbox.Append(ctx, event); errAppend != nil {
			log.Printf("failed to record checkout event for %s: %v", user.Email, errAppend)
		}
	}

	s.invalidateCache(user.Email)
	return saved, nil
}

// lockUser serializes checkouts for one user. Entries are reference
// counted and removed once the last holder releases, so the map stays
// proportional to in-flight checkouts rather than to every user ever
// seen.
func (s *CartService) lockUser(email string) *userLock {
	s.mu.Lock()
	lock, ok := s.locks[email]
	if !ok {
		lock = &userLock{}
		s.locks[email] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return lock
}

func (s *CartService) unlockUser(email string, lock *userLock) {
	lock.mu.Unlock()

	s.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(s.locks, email)
	}
	s.mu.Unlock()
}

func (s *CartService) compensateDebit(email string, amount float64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.users.CreditWallet(ctx, email, amount); err != nil {
		log.Printf("checkout compensation failed for %s: %v", email, err)
	}
}

func (s *CartService) invalidateCache(email string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, email); err != nil {
		log.Printf("cache invalidate error: %v", err)
	}
}
