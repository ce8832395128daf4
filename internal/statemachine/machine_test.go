package statemachine

import (
	"errors"
	"testing"
	"time"

	"github.com/Ryz3nPlayZ/B2B-Procurement/internal/dealrecord"
	"github.com/Ryz3nPlayZ/B2B-Procurement/internal/model"
)

func recordIn(t *testing.T, status model.DealStatus) *dealrecord.Record {
	t.Helper()
	rec := dealrecord.New("deal_1", model.NegotiationPolicy{BudgetCeiling: "100", MaxRounds: 3}, time.Hour)
	if status != model.StatusInit {
		if err := rec.UpdateStatus(status, ""); err != nil {
			t.Fatal(err)
		}
	}
	return rec
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from  model.DealStatus
		event model.Event
		want  model.DealStatus
		legal bool
	}{
		{model.StatusInit, model.EventRFQCreated, model.StatusRFQOpen, true},
		{model.StatusInit, model.EventQuoteReceived, "", false},
		{model.StatusRFQOpen, model.EventQuoteReceived, model.StatusQuotesCollecting, true},
		{model.StatusRFQOpen, model.EventCounterSent, "", false},
		{model.StatusQuotesCollecting, model.EventQuoteReceived, model.StatusQuotesCollecting, true},
		{model.StatusQuotesCollecting, model.EventEvaluationDone, model.StatusEvaluating, true},
		{model.StatusQuotesCollecting, model.EventOfferAccepted, "", false},
		{model.StatusEvaluating, model.EventCounterSent, model.StatusNegotiating, true},
		{model.StatusEvaluating, model.EventOfferAccepted, model.StatusAgreed, true},
		{model.StatusEvaluating, model.EventRoundLimitReached, model.StatusRejected, true},
		{model.StatusNegotiating, model.EventCounterReceived, model.StatusNegotiating, true},
		{model.StatusNegotiating, model.EventOfferAccepted, model.StatusAgreed, true},
		{model.StatusNegotiating, model.EventOfferRejected, model.StatusRejected, true},
		{model.StatusNegotiating, model.EventRFQCreated, "", false},
		{model.StatusAgreed, model.EventFinalize, model.StatusFinalized, true},
		{model.StatusAgreed, model.EventCounterSent, "", false},
		{model.StatusRejected, model.EventFinalize, model.StatusFinalized, true},
		{model.StatusExpired, model.EventFinalize, model.StatusFinalized, true},
		{model.StatusExpired, model.EventQuoteReceived, "", false},
		{model.StatusFinalized, model.EventArchive, model.StatusArchived, true},
		{model.StatusFinalized, model.EventFinalize, "", false},
		{model.StatusArchived, model.EventFinalize, "", false},
		{model.StatusArchived, model.EventArchive, "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_"+string(tt.event), func(t *testing.T) {
			got, ok := Target(tt.from, tt.event)
			if ok != tt.legal {
				t.Fatalf("Target(%s, %s) legal = %v, want %v", tt.from, tt.event, ok, tt.legal)
			}
			if tt.legal && got != tt.want {
				t.Errorf("Target(%s, %s) = %s, want %s", tt.from, tt.event, got, tt.want)
			}
		})
	}
}

func TestEveryActiveStateCanTimeOut(t *testing.T) {
	for _, status := range []model.DealStatus{
		model.StatusInit, model.StatusRFQOpen, model.StatusQuotesCollecting,
		model.StatusEvaluating, model.StatusNegotiating,
	} {
		if got, ok := Target(status, model.EventTimeout); !ok || got != model.StatusExpired {
			t.Errorf("Target(%s, TIMEOUT) = (%s, %v), want (EXPIRED, true)", status, got, ok)
		}
	}
}

func TestPayloadTypeBindsEvents(t *testing.T) {
	tests := []struct {
		event model.Event
		want  model.MessageType
	}{
		{model.EventQuoteReceived, model.MessageQuote},
		{model.EventCounterSent, model.MessageCounterOffer},
		{model.EventCounterReceived, model.MessageCounterOffer},
		{model.EventOfferAccepted, model.MessageAcceptance},
		{model.EventOfferRejected, model.MessageRejection},
	}
	for _, tt := range tests {
		if got, ok := PayloadType(tt.event); !ok || got != tt.want {
			t.Errorf("PayloadType(%s) = (%s, %v), want (%s, true)", tt.event, got, ok, tt.want)
		}
	}
	// no event accepts a heartbeat envelope
	for event := range payloadTypes {
		if t2, _ := PayloadType(event); t2 == model.MessageHeartbeat {
			t.Errorf("%s bound to heartbeat", event)
		}
	}
}

func TestCheckExpiryWinsRaces(t *testing.T) {
	rec := recordIn(t, model.StatusNegotiating)
	m := New(rec)
	past := rec.ExpiresAt().Add(time.Minute)

	// a legal event after the deadline is rejected in favour of TIMEOUT
	if err := m.Check(model.EventOfferAccepted, past); !errors.Is(err, ErrDealExpired) {
		t.Errorf("Check(OFFER_ACCEPTED past expiry) = %v, want ErrDealExpired", err)
	}
	if err := m.Check(model.EventTimeout, past); err != nil {
		t.Errorf("Check(TIMEOUT past expiry) = %v, want nil", err)
	}
	// before the deadline the same event passes
	if err := m.Check(model.EventOfferAccepted, rec.ExpiresAt().Add(-time.Minute)); err != nil {
		t.Errorf("Check(OFFER_ACCEPTED before expiry) = %v, want nil", err)
	}
}

func TestCheckRoundLimit(t *testing.T) {
	rec := recordIn(t, model.StatusNegotiating)
	now := time.Now().UTC()

	for i := 1; i <= rec.MaxRounds(); i++ {
		round := model.Round{RoundNumber: i, Event: model.EventCounterSent, ActorID: "buyer_x"}
		if err := rec.AddRound(round, true); err != nil {
			t.Fatal(err)
		}
	}

	m := New(rec)
	if err := m.Check(model.EventCounterSent, now); !errors.Is(err, ErrRoundLimit) {
		t.Errorf("Check(COUNTER_SENT at limit) = %v, want ErrRoundLimit", err)
	}
	// non-consuming events still pass at the limit
	if err := m.Check(model.EventOfferAccepted, now); err != nil {
		t.Errorf("Check(OFFER_ACCEPTED at limit) = %v, want nil", err)
	}
	if err := m.Check(model.EventRoundLimitReached, now); err != nil {
		t.Errorf("Check(ROUND_LIMIT_REACHED at limit) = %v, want nil", err)
	}
}

func TestTransitionAppendsRoundAndMovesStatus(t *testing.T) {
	rec := recordIn(t, model.StatusEvaluating)
	m := New(rec)

	round := model.Round{
		RoundNumber: 1,
		Event:       model.EventCounterSent,
		ActorID:     "buyer_x",
		Message: &model.Envelope{Type: model.MessageCounterOffer, SenderID: "buyer_x",
			Payload: map[string]any{"offer_id": "q_1", "unit_price": "48", "round_number": float64(1)}},
	}
	newState, err := m.Transition(model.EventCounterSent, &round, "")
	if err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if newState != model.StatusNegotiating {
		t.Errorf("new state = %s, want NEGOTIATING", newState)
	}
	if rec.CurrentRound() != 1 {
		t.Errorf("current round = %d, want 1", rec.CurrentRound())
	}
	if n := len(rec.Snapshot().History); n != 1 {
		t.Errorf("history length = %d, want 1", n)
	}
}

func TestTransitionIllegalEventLeavesRecordUntouched(t *testing.T) {
	rec := recordIn(t, model.StatusRFQOpen)
	m := New(rec)

	round := model.Round{RoundNumber: 0, Event: model.EventOfferAccepted, ActorID: "buyer_x"}
	if _, err := m.Transition(model.EventOfferAccepted, &round, ""); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("Transition() error = %v, want ErrIllegalTransition", err)
	}
	if rec.Status() != model.StatusRFQOpen {
		t.Errorf("status moved to %s on illegal event", rec.Status())
	}
	if n := len(rec.Snapshot().History); n != 0 {
		t.Errorf("illegal event appended history: %d entries", n)
	}
}

func TestTransitionRejectsOutOfOrderRound(t *testing.T) {
	rec := recordIn(t, model.StatusNegotiating)
	m := New(rec)

	stale := model.Round{RoundNumber: 0, Event: model.EventCounterSent, ActorID: "buyer_x"}
	if _, err := m.Transition(model.EventCounterSent, &stale, ""); !errors.Is(err, dealrecord.ErrOutOfOrderRound) {
		t.Fatalf("Transition() error = %v, want ErrOutOfOrderRound", err)
	}
	if rec.Status() != model.StatusNegotiating || rec.CurrentRound() != 0 {
		t.Error("out-of-order round mutated the record")
	}
}

func TestArchiveTransitionSealsRecord(t *testing.T) {
	rec := recordIn(t, model.StatusFinalized)
	m := New(rec)

	round := model.Round{RoundNumber: 0, Event: model.EventArchive, ActorID: "system"}
	newState, err := m.Transition(model.EventArchive, &round, "")
	if err != nil {
		t.Fatalf("Transition(ARCHIVE) error = %v", err)
	}
	if newState != model.StatusArchived {
		t.Errorf("new state = %s, want ARCHIVED", newState)
	}
	if !m.IsFinalState() {
		t.Error("IsFinalState() = false after archive")
	}
	if err := rec.UpdateStatus(model.StatusInit, ""); !errors.Is(err, dealrecord.ErrArchived) {
		t.Errorf("record still mutable after archive: %v", err)
	}
}
