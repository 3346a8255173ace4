// Package events consumes listing lifecycle events from Kafka and routes
// them to matching and status synchronization.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/sells-group/market-match/internal/model"
	"github.com/sells-group/market-match/internal/resilience"
)

// Event types.
const (
	ListingCreated       = "listing.created"
	ListingStatusChanged = "listing.status_changed"
)

// Event is the JSON payload of a listing lifecycle message.
type Event struct {
	Type       string    `json:"type"`
	ListingID  string    `json:"listing_id"`
	Status     string    `json:"status,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at,omitempty"`
}

// Reader is the subset of *kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Dispatcher queues listings for matching.
type Dispatcher interface {
	SubmitWait(ctx context.Context, listingID string) error
}

// Synchronizer propagates listing status changes to matches.
type Synchronizer interface {
	SyncListingStatus(ctx context.Context, listingID string, status model.ListingStatus, reason string) (int, error)
}

// NewReader creates a consumer-group reader for topic.
func NewReader(brokers []string, groupID, topic string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 1 << 20,
		MaxWait:  time.Second,
	})
}

// Consumer routes listing events.
type Consumer struct {
	reader     Reader
	dispatcher Dispatcher
	sync       Synchronizer
	retry      resilience.Policy
}

// NewConsumer creates a Consumer.
func NewConsumer(r Reader, d Dispatcher, s Synchronizer) *Consumer {
	return &Consumer{reader: r, dispatcher: d, sync: s, retry: resilience.DefaultPolicy()}
}

// Run consumes until ctx is done or the reader fails. A message is
// committed once handled; malformed messages are logged and committed so
// they do not block the partition. A status sync that still fails after
// retries is logged and committed, leaving the drift to reconciliation.
// A dispatcher error stops the consumer without committing so the message
// is redelivered.
func (c *Consumer) Run(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "events"))
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return eris.Wrap(err, "events: fetch")
		}

		if err := c.handle(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return eris.Wrapf(err, "events: handle offset %d", msg.Offset)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return eris.Wrap(err, "events: commit")
		}
		log.Debug("events: committed", zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset))
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	log := zap.L().With(
		zap.String("component", "events"),
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
	)

	var ev Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		log.Warn("events: skipping malformed message", zap.Error(err))
		return nil
	}
	if ev.ListingID == "" {
		log.Warn("events: skipping event without listing id", zap.String("type", ev.Type))
		return nil
	}

	switch ev.Type {
	case ListingCreated:
		return c.dispatcher.SubmitWait(ctx, ev.ListingID)
	case ListingStatusChanged:
		status, err := model.ParseListingStatus(ev.Status)
		if err != nil {
			log.Warn("events: skipping unknown listing status", zap.String("listing_id", ev.ListingID), zap.Error(err))
			return nil
		}
		_, err = resilience.Retry(ctx, c.retry, "events.sync_listing_status", func(ctx context.Context) (int, error) {
			return c.sync.SyncListingStatus(ctx, ev.ListingID, status, ev.Reason)
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("events: listing status sync failed, left for reconciliation",
				zap.String("listing_id", ev.ListingID),
				zap.String("status", string(status)),
				zap.Error(err),
			)
		}
		return nil
	default:
		log.Debug("events: ignoring event type", zap.String("type", ev.Type))
		return nil
	}
}

// Close closes the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
