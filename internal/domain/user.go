package domain

import "time"

// DefaultAddress is the sentinel a new account starts with. Checkout is
// refused until the user replaces it with a real shipping address.
const DefaultAddress = "ADDRESS_NOT_SET"

type User struct {
	Name        string    `bson:"name" json:"name"`
	Email       string    `bson:"email" json:"email"`
	Password    string    `bson:"password" json:"-"`
	WalletMoney float64   `bson:"wallet_money" json:"wallet_money"`
	Address     string    `bson:"address" json:"address"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

// HasNonDefaultAddress reports whether the user has set a real shipping
// address.
func (u *User) HasNonDefaultAddress() bool {
	return u.Address != DefaultAddress && u.Address != ""
}
