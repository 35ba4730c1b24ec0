package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shasan419/qkart/internal/domain"
)

func seedUser(t *testing.T, store UserStore, wallet float64) *domain.User {
	t.Helper()
	user, err := store.CreateUser(context.Background(), &domain.User{
		Name:        "Crio Dev",
		Email:       "crio-user@gmail.com",
		Password:    "hashed",
		WalletMoney: wallet,
		Address:     domain.DefaultAddress,
	})
	require.NoError(t, err)
	return user
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMongoUserStore(db)
	seedUser(t, store, 500)

	_, err := store.CreateUser(context.Background(), &domain.User{
		Name:  "Someone Else",
		Email: "crio-user@gmail.com",
	})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestDebitWallet_Insufficient(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMongoUserStore(db)
	seedUser(t, store, 100)
	ctx := context.Background()

	err := store.DebitWallet(ctx, "crio-user@gmail.com", 250)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	user, err := store.FindUser(ctx, "crio-user@gmail.com")
	require.NoError(t, err)
	assert.Equal(t, float64(100), user.WalletMoney)
}

func TestDebitWallet_ConcurrentDebitsNeverOverspend(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMongoUserStore(db)
	seedUser(t, store, 250)
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- store.DebitWallet(ctx, "crio-user@gmail.com", 100)
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

	assert.Equal(t, 2, successes)

	user, err := store.FindUser(ctx, "crio-user@gmail.com")
	require.NoError(t, err)
	assert.Equal(t, float64(50), user.WalletMoney)
}

func TestSetAddress_UnknownUser(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMongoUserStore(db)
	err := store.SetAddress(context.Background(), "nobody@gmail.com", "Flat 1, Some Street, Bangalore")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
