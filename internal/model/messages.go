package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType tags the closed set of negotiation message variants.
type MessageType string

const (
	MessageRFQ          MessageType = "rfq"
	MessageQuote        MessageType = "quote"
	MessageCounterOffer MessageType = "counter_offer"
	MessageAcceptance   MessageType = "acceptance"
	MessageRejection    MessageType = "rejection"
	MessageHeartbeat    MessageType = "heartbeat"
)

// KnownMessageType reports whether t is one of the supported variants.
func KnownMessageType(t MessageType) bool {
	switch t {
	case MessageRFQ, MessageQuote, MessageCounterOffer, MessageAcceptance, MessageRejection, MessageHeartbeat:
		return true
	}
	return false
}

// Envelope is the generic inbound message wrapper handed over by the transport
// layer. Payload keeps the raw fields so unknown optional keys survive; the
// validator decodes it into the typed variant for the declared type.
type Envelope struct {
	Type      MessageType    `json:"type" bson:"type"`
	DealID    string         `json:"deal_id" bson:"deal_id"`
	SenderID  string         `json:"sender_id" bson:"sender_id"`
	Timestamp time.Time      `json:"timestamp" bson:"timestamp"`
	Payload   map[string]any `json:"payload" bson:"payload"`
}

// Clone deep-copies the envelope through JSON so the payload map is not
// shared. Payload values are plain JSON types, so the round-trip is lossless.
func (e Envelope) Clone() Envelope {
	out := e
	if e.Payload != nil {
		raw, err := json.Marshal(e.Payload)
		if err == nil {
			var m map[string]any
			if json.Unmarshal(raw, &m) == nil {
				out.Payload = m
			}
		}
	}
	return out
}

// DecodePayload unmarshals the envelope payload into the given typed message.
// Unknown fields are ignored, matching the permissiveness of the wire format.
func (e Envelope) DecodePayload(v any) error {
	raw, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// RFQMessage is the buyer's initiating requirement specification.
type RFQMessage struct {
	RFQID                  string   `json:"rfq_id"`
	BuyerID                string   `json:"buyer_id"`
	Description            string   `json:"description"`
	Quantity               int64    `json:"quantity"`
	MaxUnitPrice           string   `json:"max_unit_price"`
	RequiredCertifications []string `json:"required_certifications,omitempty"`
	DeliveryDeadlineDays   int      `json:"delivery_deadline_days,omitempty"`
}

// QuoteMessage is a seller's priced response to an RFQ.
type QuoteMessage struct {
	QuoteID        string   `json:"quote_id"`
	RFQID          string   `json:"rfq_id"`
	SellerID       string   `json:"seller_id"`
	UnitPrice      string   `json:"unit_price"`
	Quantity       int64    `json:"quantity"`
	DeliveryDays   int      `json:"delivery_days"`
	WarrantyMonths int      `json:"warranty_months"`
	Certifications []string `json:"certifications,omitempty"`
	Notes          string   `json:"notes,omitempty"`
}

// Offer converts the quote into a scoreable offer.
func (q QuoteMessage) Offer(producedAt time.Time) Offer {
	return Offer{
		OfferID:        q.QuoteID,
		SellerID:       q.SellerID,
		UnitPrice:      q.UnitPrice,
		Quantity:       q.Quantity,
		DeliveryDays:   q.DeliveryDays,
		WarrantyMonths: q.WarrantyMonths,
		Certifications: append([]string(nil), q.Certifications...),
		ProducedAt:     producedAt,
	}
}

// CounterOfferMessage revises price or terms mid-negotiation.
type CounterOfferMessage struct {
	OfferID        string   `json:"offer_id"`
	RoundNumber    int      `json:"round_number"`
	UnitPrice      string   `json:"unit_price"`
	Quantity       int64    `json:"quantity,omitempty"`
	DeliveryDays   int      `json:"delivery_days,omitempty"`
	WarrantyMonths int      `json:"warranty_months,omitempty"`
	Certifications []string `json:"certifications,omitempty"`
	Notes          string   `json:"notes,omitempty"`
}

// AcceptanceMessage closes the negotiation on the referenced offer. It only
// binds against the most recent open offer in the deal.
type AcceptanceMessage struct {
	AcceptedOfferID string `json:"accepted_offer_id"`
	Notes           string `json:"notes,omitempty"`
}

// RejectionMessage declines the current offer or abandons the negotiation.
type RejectionMessage struct {
	Reason string `json:"reason"`
}

// HeartbeatMessage keeps a transport session alive. It is validated but never
// recorded as a round.
type HeartbeatMessage struct {
	Sequence int64 `json:"sequence,omitempty"`
}
