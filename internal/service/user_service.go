package service

import (
	"context"
	"errors"
	"log"

	"github.com/shasan419/qkart/internal/apierror"
	"github.com/shasan419/qkart/internal/auth"
	"github.com/shasan419/qkart/internal/domain"
	"github.com/shasan419/qkart/internal/repository"
)

// UserService handles registration, login, and address updates.
type UserService struct {
	users              repository.UserStore
	tokens             *auth.TokenManager
	defaultWalletMoney float64
}

func NewUserService(users repository.UserStore, tokens *auth.TokenManager, defaultWalletMoney float64) *UserService {
	return &UserService{
		users:              users,
		tokens:             tokens,
		defaultWalletMoney: defaultWalletMoney,
	}
}

// Register creates an account with the default wallet balance and the
// unset-address sentinel, and returns it with a fresh access token.
func (s *UserService) Register(ctx context.Context, name, email, password string) (*domain.User, string, error) {
	taken, err := s.users.IsEmailTaken(ctx, email)
	if err != nil {
		return nil, "", apierror.Internal("failed to check email")
	}
	if taken {
		return nil, "", apierror.InvalidRequest("Email already taken")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, "", apierror.Internal("failed to hash password")
	}

	user, err := s.users.CreateUser(ctx, &domain.User{
		Name:        name,
		Email:       email,
		Password:    hash,
		WalletMoney: s.defaultWalletMoney,
		Address:     domain.DefaultAddress,
	})
	if err != nil {
		// Unique index closes the race between the taken check and the
		// insert.
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, "", apierror.InvalidRequest("Email already taken")
		}
		log.Printf("user creation failed for %s: %v", email, err)
		return nil, "", apierror.Internal("failed to create user")
	}

	token, err := s.tokens.Issue(user.Email)
	if err != nil {
		return nil, "", apierror.Internal("failed to issue token")
	}

	return user, token, nil
}

// Login verifies credentials and returns the user with a fresh token.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	user, err := s.users.FindUser(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, "", apierror.Unauthorized("Incorrect email or password")
		}
		return nil, "", apierror.Internal("failed to fetch user")
	}

	if !auth.CheckPassword(user.Password, password) {
		return nil, "", apierror.Unauthorized("Incorrect email or password")
	}

	token, err := s.tokens.Issue(user.Email)
	if err != nil {
		return nil, "", apierror.Internal("failed to issue token")
	}

	return user, token, nil
}

// SetAddress replaces the shipping address.
func (s *UserService) SetAddress(ctx context.Context, email, address string) error {
	if err := s.users.SetAddress(ctx, email, address); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apierror.NotFound("User not found")
		}
		return apierror.Internal("failed to set address")
	}
	return nil
}

// GetUserByEmail loads the account for an authenticated identity.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.users.FindUser(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apierror.NotFound("User not found")
		}
		return nil, apierror.Internal("failed to fetch user")
	}
	return user, nil
}
