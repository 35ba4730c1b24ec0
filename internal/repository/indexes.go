package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
)

// EnsureIndexes creates the unique per-user indexes both stores rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	carts := &mongoCartStore{collection: db.Collection("carts")}
	if err := carts.CreateIndexes(ctx); err != nil {
		return err
	}

	users := &mongoUserStore{collection: db.Collection("users")}
	return users.CreateIndexes(ctx)
}
