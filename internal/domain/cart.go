package domain

import "time"

// Cart holds one user's selected products. A user has at most one cart,
// keyed by email, and the cart holds at most one item per product.
type Cart struct {
	ID        string     `bson:"_id,omitempty" json:"id,omitempty"`
	Email     string     `bson:"email" json:"email"`
	Items     []CartItem `bson:"items" json:"items"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

type CartItem struct {
	ID       string    `bson:"item_id" json:"item_id"`
	Product  Product   `bson:"product" json:"product"`
	Quantity int       `bson:"quantity" json:"quantity"`
	AddedAt  time.Time `bson:"added_at" json:"added_at"`
}

// FindItem returns the index of the item holding productID, or -1.
func (c *Cart) FindItem(productID int64) int {
	for i := range c.Items {
		if c.Items[i].Product.ID == productID {
			return i
		}
	}
	return -1
}

// Total is the checkout amount: Σ quantity × snapshot cost.
func (c *Cart) Total() float64 {
	var total float64
	for _, item := range c.Items {
		total += float64(item.Quantity) * item.Product.Cost
	}
	return total
}
