package domain

import "time"

// Product is the catalog's view of an item. Carts embed a copy of it at
// add time, so a later catalog price change never touches items already
// in a cart.
type Product struct {
	ID        int64     `bson:"product_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	Category  string    `bson:"category" json:"category"`
	Cost      float64   `bson:"cost" json:"cost"`
	Rating    int       `bson:"rating" json:"rating"`
	ImageURL  string    `bson:"image_url" json:"image_url"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
