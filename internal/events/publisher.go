// Package events publishes deal lifecycle notifications. Delivery is
// best-effort: a webhook failure is logged, never surfaced to the engine.
package events

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/Ryz3nPlayZ/B2B-Procurement/internal/httpclient"
)

// Deal lifecycle event types.
const (
	EventDealCreated       = "deal.created"
	EventDealQuoteReceived = "deal.quote_received"
	EventDealCounter       = "deal.counter"
	EventDealAgreed        = "deal.agreed"
	EventDealRejected      = "deal.rejected"
	EventDealExpired       = "deal.expired"
	EventDealFinalized     = "deal.finalized"
	EventDealArchived      = "deal.archived"
)

// Envelope wraps every published event.
type Envelope struct {
	EventID        string         `json:"event_id"`
	EventType      string         `json:"event_type"`
	SchemaVersion  string         `json:"schema_version"`
	IdempotencyKey string         `json:"idempotency_key"`
	Timestamp      time.Time      `json:"timestamp"`
	Source         string         `json:"source"`
	Data           map[string]any `json:"data"`
}

// Publisher fans deal events out to registered webhook endpoints.
type Publisher struct {
	source    string
	client    *httpclient.Client
	endpoints map[string]string // eventType -> webhook URL
}

func NewPublisher(source string) *Publisher {
	return &Publisher{
		source:    source,
		client:    httpclient.NewClient(source, 5*time.Second),
		endpoints: make(map[string]string),
	}
}

// RegisterEndpoint routes an event type to a webhook URL. An empty URL is
// ignored.
func (p *Publisher) RegisterEndpoint(eventType, webhookURL string) {
	if webhookURL == "" {
		return
	}
	p.endpoints[eventType] = webhookURL
}

// Publish logs the event and, when an endpoint is registered for the type,
// POSTs the envelope to it.
func (p *Publisher) Publish(ctx context.Context, eventType string, data map[string]any) error {
	envelope := Envelope{
		EventID:        generateEventID(),
		EventType:      eventType,
		SchemaVersion:  "1.0",
		IdempotencyKey: fmt.Sprintf("%s_%v_%d", eventType, data["deal_id"], time.Now().Unix()),
		Timestamp:      time.Now().UTC(),
		Source:         p.source,
		Data:           data,
	}

	slog.InfoContext(ctx, "event_published",
		"event_id", envelope.EventID,
		"event_type", envelope.EventType,
		"deal_id", data["deal_id"],
	)

	webhookURL, ok := p.endpoints[eventType]
	if !ok {
		return nil
	}
	if err := p.client.PostJSON(ctx, webhookURL, envelope, nil); err != nil {
		slog.WarnContext(ctx, "webhook_failed",
			"url", webhookURL,
			"event_type", eventType,
			"error", err,
		)
	}
	return nil
}

func generateEventID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return "evt_" + hex.EncodeToString(b[:])
}
