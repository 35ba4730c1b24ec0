package repository

import (
	"context"
	"errors"

	"github.com/shasan419/qkart/internal/domain"
)

var (
	ErrCartNotFound      = errors.New("cart not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrEmailTaken        = errors.New("email already taken")
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
)

// CartStore defines cart persistence as the service consumes it.
// Consumers define this interface, not the MongoDB implementation.
type CartStore interface {
	// FindCart returns the user's cart or ErrCartNotFound. It never
	// creates one.
	FindCart(ctx context.Context, email string) (*domain.Cart, error)
	// GetOrCreateCart returns the user's cart, creating an empty one if
	// the user has none.
	GetOrCreateCart(ctx context.Context, email string) (*domain.Cart, error)
	// SaveCart persists the full item collection and returns the stored
	// cart.
	SaveCart(ctx context.Context, cart *domain.Cart) (*domain.Cart, error)
}

// UserStore defines the account state checkout reads and mutates.
type UserStore interface {
	FindUser(ctx context.Context, email string) (*domain.User, error)
	CreateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	IsEmailTaken(ctx context.Context, email string) (bool, error)
	SetAddress(ctx context.Context, email, address string) error
	// DebitWallet decrements the wallet only when the current balance
	// covers amount, returning ErrInsufficientFunds otherwise. The
	// conditional write is what keeps concurrent checkouts from
	// over-spending.
	DebitWallet(ctx context.Context, email string, amount float64) error
	// CreditWallet adds amount back; used to compensate a checkout whose
	// cart-clear failed after the debit.
	CreditWallet(ctx context.Context, email string, amount float64) error
}
