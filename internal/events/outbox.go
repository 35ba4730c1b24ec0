// Package events records successful checkouts in a Mongo outbox and
// publishes them to Kafka from a background poller, so a broker outage
// never fails a checkout.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CheckoutEvent is one completed checkout awaiting publication.
type CheckoutEvent struct {
	ID          string    `bson:"_id" json:"event_id"`
	Email       string    `bson:"email" json:"email"`
	TotalAmount float64   `bson:"total_amount" json:"total_amount"`
	ItemCount   int       `bson:"item_count" json:"item_count"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	Published   bool      `bson:"published" json:"-"`
}

type Outbox interface {
	Append(ctx context.Context, event CheckoutEvent) error
	FetchUnpublished(ctx context.Context, limit int64) ([]CheckoutEvent, error)
	MarkPublished(ctx context.Context, id string) error
}

type mongoOutbox struct {
	collection *mongo.Collection
}

func NewMongoOutbox(db *mongo.Database) Outbox {
	return &mongoOutbox{
		collection: db.Collection("checkout_events"),
	}
}

func NewCheckoutEvent(email string, total float64, itemCount int) CheckoutEvent {
	return CheckoutEvent{
		ID:          uuid.NewString(),
		Email:       email,
		TotalAmount: total,
		ItemCount:   itemCount,
		CreatedAt:   time.Now(),
	}
}

func (o *mongoOutbox) Append(ctx context.Context, event CheckoutEvent) error {
	if _, err := o.collection.InsertOne(ctx, event); err != nil {
		return fmt.Errorf("failed to append checkout event: %w", err)
	}
	return nil
}

func (o *mongoOutbox) FetchUnpublished(ctx context.Context, limit int64) ([]CheckoutEvent, error) {
	filter := bson.M{"published": false}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(limit)

	cursor, err := o.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unpublished events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []CheckoutEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}

	return events, nil
}

func (o *mongoOutbox) MarkPublished(ctx context.Context, id string) error {
	filter := bson.M{"_id": id}
	update := bson.M{"$set": bson.M{"published": true}}

	if _, err := o.collection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to mark event published: %w", err)
	}
	return nil
}
