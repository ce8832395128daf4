package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DealStatus is the lifecycle state of a negotiation.
type DealStatus string

const (
	StatusInit             DealStatus = "INIT"
	StatusRFQOpen          DealStatus = "RFQ_OPEN"
	StatusQuotesCollecting DealStatus = "QUOTES_COLLECTING"
	StatusEvaluating       DealStatus = "EVALUATING"
	StatusNegotiating      DealStatus = "NEGOTIATING"
	StatusAgreed           DealStatus = "AGREED"
	StatusRejected         DealStatus = "REJECTED"
	StatusExpired          DealStatus = "EXPIRED"
	StatusFinalized        DealStatus = "FINALIZED"
	StatusArchived         DealStatus = "ARCHIVED"
)

// Active reports whether the deal is still negotiable. AGREED, REJECTED and
// EXPIRED are terminal-eligible: no negotiation events are accepted but the
// deal still has to pass through FINALIZED before archiving.
func (s DealStatus) Active() bool {
	switch s {
	case StatusInit, StatusRFQOpen, StatusQuotesCollecting, StatusEvaluating, StatusNegotiating:
		return true
	}
	return false
}

// TerminalEligible reports whether the deal may be finalized from this state.
func (s DealStatus) TerminalEligible() bool {
	return s == StatusAgreed || s == StatusRejected || s == StatusExpired
}

// Event drives the negotiation state machine.
type Event string

const (
	EventRFQCreated        Event = "RFQ_CREATED"
	EventQuoteReceived     Event = "QUOTE_RECEIVED"
	EventEvaluationDone    Event = "EVALUATION_DONE"
	EventCounterSent       Event = "COUNTER_SENT"
	EventCounterReceived   Event = "COUNTER_RECEIVED"
	EventOfferAccepted     Event = "OFFER_ACCEPTED"
	EventOfferRejected     Event = "OFFER_REJECTED"
	EventRoundLimitReached Event = "ROUND_LIMIT_REACHED"
	EventTimeout           Event = "TIMEOUT"
	EventFinalize          Event = "FINALIZE"
	EventArchive           Event = "ARCHIVE"
)

// Role tags a participant in a deal.
type Role string

const (
	RoleBuyer       Role = "buyer"
	RoleSeller      Role = "seller"
	RoleCoordinator Role = "coordinator"
)

type Participant struct {
	ID       string    `json:"id" bson:"id"`
	Role     Role      `json:"role" bson:"role"`
	JoinedAt time.Time `json:"joined_at" bson:"joined_at"`
}

// Offer is a priced proposal from a seller, or a buyer's counter. Money is
// carried as a decimal string and parsed on demand, so the document survives
// JSON and BSON round-trips without precision loss.
type Offer struct {
	OfferID        string    `json:"offer_id" bson:"offer_id"`
	SellerID       string    `json:"seller_id" bson:"seller_id"`
	UnitPrice      string    `json:"unit_price" bson:"unit_price"`
	Quantity       int64     `json:"quantity" bson:"quantity"`
	DeliveryDays   int       `json:"delivery_days" bson:"delivery_days"`
	WarrantyMonths int       `json:"warranty_months" bson:"warranty_months"`
	Certifications []string  `json:"certifications,omitempty" bson:"certifications,omitempty"`
	ProducedAt     time.Time `json:"produced_at" bson:"produced_at"`
}

// Price parses the offer's unit price.
func (o Offer) Price() (decimal.Decimal, error) {
	return decimal.NewFromString(o.UnitPrice)
}

// Round is one recorded exchange within a deal. Entries are hash-chained:
// ContentHash covers the entry plus PrevHash, so the history is tamper-evident
// and its ordering can be verified after a snapshot round-trip.
type Round struct {
	RoundNumber int       `json:"round_number" bson:"round_number"`
	Event       Event     `json:"event" bson:"event"`
	ActorID     string    `json:"actor_id" bson:"actor_id"`
	Message     *Envelope `json:"message,omitempty" bson:"message,omitempty"`
	Timestamp   time.Time `json:"timestamp" bson:"timestamp"`
	ContentHash string    `json:"content_hash" bson:"content_hash"`
	PrevHash    string    `json:"prev_hash" bson:"prev_hash"`
}

// FinalAgreement is set exactly once, on the transition into AGREED.
type FinalAgreement struct {
	OfferID   string    `json:"offer_id" bson:"offer_id"`
	SellerID  string    `json:"seller_id" bson:"seller_id"`
	UnitPrice string    `json:"unit_price" bson:"unit_price"`
	Quantity  int64     `json:"quantity" bson:"quantity"`
	AgreedAt  time.Time `json:"agreed_at" bson:"agreed_at"`
}

// Price parses the agreed unit price.
func (a FinalAgreement) Price() (decimal.Decimal, error) {
	return decimal.NewFromString(a.UnitPrice)
}

// CriteriaWeights configures the offer scorer. Weights must sum to 1.0.
type CriteriaWeights struct {
	Price     float64 `json:"price" bson:"price"`
	Delivery  float64 `json:"delivery" bson:"delivery"`
	Warranty  float64 `json:"warranty" bson:"warranty"`
	SpecMatch float64 `json:"spec_match" bson:"spec_match"`
}

// DefaultCriteriaWeights returns the stock weighting: price dominates, then
// delivery, then warranty and specification match.
func DefaultCriteriaWeights() CriteriaWeights {
	return CriteriaWeights{Price: 0.50, Delivery: 0.20, Warranty: 0.15, SpecMatch: 0.15}
}

// RecommendationThresholds are the cut points mapping a total score to a
// recommendation.
type RecommendationThresholds struct {
	Accept float64 `json:"accept" bson:"accept"`
	Reject float64 `json:"reject" bson:"reject"`
}

func DefaultRecommendationThresholds() RecommendationThresholds {
	return RecommendationThresholds{Accept: 0.8, Reject: 0.4}
}

// NegotiationPolicy holds the caller-supplied policy values for one deal. The
// engine never queries the knowledge-base side directly; whoever creates the
// deal passes these in (or lets the policy service fill them).
type NegotiationPolicy struct {
	BudgetCeiling          string                    `json:"budget_ceiling" bson:"budget_ceiling"`
	MaxRounds              int                       `json:"max_rounds" bson:"max_rounds"`
	TimeoutHours           int                       `json:"timeout_hours" bson:"timeout_hours"`
	MaxDeliveryDays        int                       `json:"max_delivery_days" bson:"max_delivery_days"`
	IdealWarrantyMonths    int                       `json:"ideal_warranty_months" bson:"ideal_warranty_months"`
	RequiredCertifications []string                  `json:"required_certifications,omitempty" bson:"required_certifications,omitempty"`
	Weights                *CriteriaWeights          `json:"criteria_weights,omitempty" bson:"criteria_weights,omitempty"`
	Thresholds             *RecommendationThresholds `json:"thresholds,omitempty" bson:"thresholds,omitempty"`
}

// Deal is the aggregate root for one negotiation.
type Deal struct {
	DealID         string            `json:"deal_id" bson:"deal_id"`
	Participants   []Participant     `json:"participants" bson:"participants"`
	Status         DealStatus        `json:"status" bson:"status"`
	StatusReason   string            `json:"status_reason,omitempty" bson:"status_reason,omitempty"`
	CurrentRound   int               `json:"current_round" bson:"current_round"`
	MaxRounds      int               `json:"max_rounds" bson:"max_rounds"`
	Policy         NegotiationPolicy `json:"policy" bson:"policy"`
	CreatedAt      time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at" bson:"updated_at"`
	ExpiresAt      time.Time         `json:"expires_at" bson:"expires_at"`
	History        []Round           `json:"history" bson:"history"`
	FinalAgreement *FinalAgreement   `json:"final_agreement,omitempty" bson:"final_agreement,omitempty"`
}

// Clone returns a deep copy. Slices and nested pointers are duplicated so the
// copy shares no mutable state with the original.
func (d Deal) Clone() Deal {
	out := d
	out.Participants = make([]Participant, len(d.Participants))
	copy(out.Participants, d.Participants)
	out.History = make([]Round, len(d.History))
	for i, r := range d.History {
		out.History[i] = r.clone()
	}
	if d.FinalAgreement != nil {
		fa := *d.FinalAgreement
		out.FinalAgreement = &fa
	}
	if d.Policy.RequiredCertifications != nil {
		out.Policy.RequiredCertifications = append([]string(nil), d.Policy.RequiredCertifications...)
	}
	if d.Policy.Weights != nil {
		w := *d.Policy.Weights
		out.Policy.Weights = &w
	}
	if d.Policy.Thresholds != nil {
		th := *d.Policy.Thresholds
		out.Policy.Thresholds = &th
	}
	return out
}

func (r Round) clone() Round {
	out := r
	if r.Message != nil {
		m := r.Message.Clone()
		out.Message = &m
	}
	return out
}

// ComponentScore is one normalized criterion score with the weight applied.
type ComponentScore struct {
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
}

// Recommendation is the scorer's verdict on a single offer.
type Recommendation string

const (
	RecommendAccept    Recommendation = "accept"
	RecommendNegotiate Recommendation = "negotiate"
	RecommendReject    Recommendation = "reject"
)

// ScoreResult is the normalized multi-criteria evaluation of one offer.
type ScoreResult struct {
	OfferID         string                    `json:"offer_id"`
	TotalScore      float64                   `json:"total_score"`
	ComponentScores map[string]ComponentScore `json:"component_scores"`
	Recommendation  Recommendation            `json:"recommendation"`
}

// RankedOffer pairs an offer with its score after comparison.
type RankedOffer struct {
	Rank   int         `json:"rank"`
	Offer  Offer       `json:"offer"`
	Result ScoreResult `json:"result"`
}

// ValidationOutcome is the structured result of message validation. Errors is
// empty iff IsValid.
type ValidationOutcome struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors,omitempty"`
}

// DealStats summarizes a deal's history for read-only callers.
type DealStats struct {
	Messages       int  `json:"messages"`
	RoundsConsumed int  `json:"rounds_consumed"`
	QuotesReceived int  `json:"quotes_received"`
	HasAgreement   bool `json:"has_agreement"`
}

// DealSummary is the read-only view returned by get_state.
type DealSummary struct {
	DealID       string        `json:"deal_id"`
	Status       DealStatus    `json:"status"`
	StatusReason string        `json:"status_reason,omitempty"`
	CurrentRound int           `json:"current_round"`
	MaxRounds    int           `json:"max_rounds"`
	Participants []Participant `json:"participants"`
	Stats        DealStats     `json:"stats"`
	ExpiresAt    time.Time     `json:"expires_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Summarize derives the read-only view from a deal snapshot.
func (d Deal) Summarize() DealSummary {
	stats := DealStats{
		Messages:       len(d.History),
		RoundsConsumed: d.CurrentRound,
		HasAgreement:   d.FinalAgreement != nil,
	}
	for _, r := range d.History {
		if r.Event == EventQuoteReceived {
			stats.QuotesReceived++
		}
	}
	return DealSummary{
		DealID:       d.DealID,
		Status:       d.Status,
		StatusReason: d.StatusReason,
		CurrentRound: d.CurrentRound,
		MaxRounds:    d.MaxRounds,
		Participants: append([]Participant(nil), d.Participants...),
		Stats:        stats,
		ExpiresAt:    d.ExpiresAt,
		UpdatedAt:    d.UpdatedAt,
	}
}
