package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the slice of *kafka.Writer the poller needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type OutboxPoller struct {
	tick   time.Duration
	outbox Outbox
	writer MessageWriter
}

func NewOutboxPoller(outbox Outbox, brokers []string, topic string) *OutboxPoller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &OutboxPoller{tick: time.Second, outbox: outbox, writer: w}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.publishPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) publishPending(ctx context.Context) {
	events, err := p.outbox.FetchUnpublished(ctx, 100)
	if err != nil {
		log.Printf("failed to fetch events: %v", err)
		return
	}

	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			log.Printf("failed to marshal event id = %v: %v", event.ID, err)
			continue
		}

		errPublish := p.writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(event.Email),
			Value: payload,
		})
		if errPublish != nil {
			log.Printf("failed to publish event id = %v: %v", event.ID, errPublish)
			continue
		}

		errMark := p.outbox.MarkPublished(ctx, event.ID)
		if errMark != nil {
			log.Printf("failed to mark event published id = %v: %v", event.ID, errMark)
			continue
		}
	}
}

func (p *OutboxPoller) Close() {
	if w, ok := p.writer.(*kafka.Writer); ok {
		if err := w.Close(); err != nil {
			log.Printf("error closing kafka writer: %v", err)
		}
	}
}
