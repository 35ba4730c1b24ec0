package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSettings carries the connection knobs for the user and cart
// collections. Zero fields fall back to defaults suited for a single
// service instance.
type MongoSettings struct {
	URI                    string
	Database               string
	ConnectTimeout         time.Duration
	ServerSelectionTimeout time.Duration
	MaxPoolSize            uint64
	MinPoolSize            uint64
}

func (s MongoSettings) withDefaults() MongoSettings {
	if s.ConnectTimeout <= 0 {
		s.ConnectTimeout = 10 * time.Second
	}
	if s.ServerSelectionTimeout <= 0 {
		s.ServerSelectionTimeout = 5 * time.Second
	}
	if s.MaxPoolSize == 0 {
		s.MaxPoolSize = 100
	}
	if s.MinPoolSize == 0 {
		s.MinPoolSize = 10
	}
	return s
}

// ConnectMongoDB opens a pooled client per settings and pings it, so a
// bad URI fails at startup instead of on the first request.
func ConnectMongoDB(ctx context.Context, settings MongoSettings) (*mongo.Database, error) {
	settings = settings.withDefaults()

	clientOpts := options.Client().
		ApplyURI(settings.URI).
		SetConnectTimeout(settings.ConnectTimeout).
		SetServerSelectionTimeout(settings.ServerSelectionTimeout).
		SetMaxPoolSize(settings.MaxPoolSize).
		SetMinPoolSize(settings.MinPoolSize)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(settings.Database), nil
}
