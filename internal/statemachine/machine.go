// Package statemachine holds the legal-transition table for the negotiation
// lifecycle and applies transitions to a deal record.
package statemachine

import (
	"errors"
	"fmt"
	"time"

	"github.com/Ryz3nPlayZ/B2B-Procurement/internal/dealrecord"
	"github.com/Ryz3nPlayZ/B2B-Procurement/internal/model"
)

var (
	ErrIllegalTransition = errors.New("event not allowed in current state")
	ErrDealExpired       = errors.New("deal is past expires_at")
	ErrRoundLimit        = errors.New("negotiation rounds exhausted")
)

// transitions maps current state x event to the next state. ARCHIVED has no
// entries: it is the only absorbing state.
var transitions = map[model.DealStatus]map[model.Event]model.DealStatus{
	model.StatusInit: {
		model.EventRFQCreated: model.StatusRFQOpen,
		model.EventTimeout:    model.StatusExpired,
	},
	model.StatusRFQOpen: {
		model.EventQuoteReceived: model.StatusQuotesCollecting,
		model.EventOfferRejected: model.StatusRejected,
		model.EventTimeout:       model.StatusExpired,
	},
	model.StatusQuotesCollecting: {
		model.EventQuoteReceived:  model.StatusQuotesCollecting,
		model.EventEvaluationDone: model.StatusEvaluating,
		model.EventOfferRejected:  model.StatusRejected,
		model.EventTimeout:        model.StatusExpired,
	},
	model.StatusEvaluating: {
		model.EventCounterSent:       model.StatusNegotiating,
		model.EventOfferAccepted:     model.StatusAgreed,
		model.EventOfferRejected:     model.StatusRejected,
		model.EventRoundLimitReached: model.StatusRejected,
		model.EventTimeout:           model.StatusExpired,
	},
	model.StatusNegotiating: {
		model.EventCounterSent:       model.StatusNegotiating,
		model.EventCounterReceived:   model.StatusNegotiating,
		model.EventOfferAccepted:     model.StatusAgreed,
		model.EventOfferRejected:     model.StatusRejected,
		model.EventRoundLimitReached: model.StatusRejected,
		model.EventTimeout:           model.StatusExpired,
	},
	model.StatusAgreed: {
		model.EventFinalize: model.StatusFinalized,
	},
	model.StatusRejected: {
		model.EventFinalize: model.StatusFinalized,
	},
	model.StatusExpired: {
		model.EventFinalize: model.StatusFinalized,
	},
	model.StatusFinalized: {
		model.EventArchive: model.StatusArchived,
	},
}

// ConsumesRound reports whether the event represents a counter-offer exchange
// and therefore advances the bounded round counter. Quotes, acceptance,
// rejection and the system-forced events do not consume rounds.
func ConsumesRound(event model.Event) bool {
	return event == model.EventCounterSent || event == model.EventCounterReceived
}

// CarriesPayload reports whether the event must arrive with a message
// envelope. System-forced and bookkeeping events travel bare.
func CarriesPayload(event model.Event) bool {
	switch event {
	case model.EventRFQCreated, model.EventQuoteReceived, model.EventCounterSent,
		model.EventCounterReceived, model.EventOfferAccepted, model.EventOfferRejected:
		return true
	}
	return false
}

// payloadTypes fixes which message variant each payload-carrying event
// accepts. Heartbeats map to no event: they are never appended as rounds.
var payloadTypes = map[model.Event]model.MessageType{
	model.EventRFQCreated:      model.MessageRFQ,
	model.EventQuoteReceived:   model.MessageQuote,
	model.EventCounterSent:     model.MessageCounterOffer,
	model.EventCounterReceived: model.MessageCounterOffer,
	model.EventOfferAccepted:   model.MessageAcceptance,
	model.EventOfferRejected:   model.MessageRejection,
}

// PayloadType returns the message type the event's envelope must declare.
func PayloadType(event model.Event) (model.MessageType, bool) {
	t, ok := payloadTypes[event]
	return t, ok
}

// Target resolves the next state for (status, event) without mutating
// anything.
func Target(status model.DealStatus, event model.Event) (model.DealStatus, bool) {
	next, ok := transitions[status][event]
	return next, ok
}

// Machine applies lifecycle transitions to one deal record.
type Machine struct {
	rec *dealrecord.Record
}

func New(rec *dealrecord.Record) *Machine {
	return &Machine{rec: rec}
}

// CanTransition performs the legality check without mutating state, so a
// caller can pre-validate before constructing a payload.
func (m *Machine) CanTransition(event model.Event) bool {
	_, ok := Target(m.rec.Status(), event)
	return ok
}

// IsFinalState is true once the deal reaches FINALIZED or ARCHIVED.
func (m *Machine) IsFinalState() bool {
	s := m.rec.Status()
	return s == model.StatusFinalized || s == model.StatusArchived
}

// Check validates an event against the record without applying it. Expiry is
// checked before anything else: if two events race, TIMEOUT wins. Round
// exhaustion is reported for round-consuming events so the caller can force
// ROUND_LIMIT_REACHED instead.
func (m *Machine) Check(event model.Event, now time.Time) error {
	status := m.rec.Status()
	if status.Active() && now.After(m.rec.ExpiresAt()) && event != model.EventTimeout {
		return ErrDealExpired
	}
	if ConsumesRound(event) && m.rec.CurrentRound() >= m.rec.MaxRounds() {
		return ErrRoundLimit
	}
	if _, ok := Target(status, event); !ok {
		return fmt.Errorf("%w: %s in %s", ErrIllegalTransition, event, status)
	}
	return nil
}

// Transition applies the event: appends the round (if any), moves the status
// and, for ARCHIVE, seals the record. The caller is responsible for having
// run Check first; Transition re-resolves the target to stay safe against
// racing callers.
func (m *Machine) Transition(event model.Event, round *model.Round, reason string) (model.DealStatus, error) {
	status := m.rec.Status()
	next, ok := Target(status, event)
	if !ok {
		return status, fmt.Errorf("%w: %s in %s", ErrIllegalTransition, event, status)
	}

	if round != nil {
		if err := m.rec.AddRound(*round, ConsumesRound(event)); err != nil {
			return status, err
		}
	}

	if event == model.EventArchive {
		// UpdateStatus to FINALIZED happened on the previous transition;
		// Archive flips the record read-only.
		if err := m.rec.Archive(); err != nil {
			return status, err
		}
		return model.StatusArchived, nil
	}

	if err := m.rec.UpdateStatus(next, reason); err != nil {
		return status, err
	}
	return next, nil
}
