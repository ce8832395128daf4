// Package dealrecord owns the durable, append-only record of a single
// negotiation. The state machine is the record's only writer; everyone else
// gets immutable snapshots.
package dealrecord

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Ryz3nPlayZ/B2B-Procurement/internal/model"
)

const genesisHash = "genesis"

var (
	ErrArchived             = errors.New("deal is archived, record is read-only")
	ErrOutOfOrderRound      = errors.New("round_number out of order")
	ErrDuplicateParticipant = errors.New("participant already present")
	ErrAgreementAlreadySet  = errors.New("final_agreement already set")
	ErrNotFinalized         = errors.New("deal must be FINALIZED before archive")
)

// Record wraps one Deal and enforces its mutation invariants: rounds are
// append-only and strictly ordered, status moves only through UpdateStatus,
// and after Archive every mutator fails.
type Record struct {
	mu       sync.RWMutex
	deal     model.Deal
	headHash string
	clock    func() time.Time
}

// New creates a fresh record in INIT with expiry derived from the policy.
func New(dealID string, policy model.NegotiationPolicy, timeout time.Duration) *Record {
	now := time.Now().UTC()
	r := &Record{
		deal: model.Deal{
			DealID:       dealID,
			Status:       model.StatusInit,
			MaxRounds:    policy.MaxRounds,
			Policy:       policy,
			CreatedAt:    now,
			UpdatedAt:    now,
			ExpiresAt:    now.Add(timeout),
			Participants: []model.Participant{},
			History:      []model.Round{},
		},
		headHash: genesisHash,
		clock:    func() time.Time { return time.Now().UTC() },
	}
	return r
}

// FromDeal rehydrates a record from a persisted snapshot. The hash chain head
// is recovered from the last history entry.
func FromDeal(d model.Deal) *Record {
	r := &Record{
		deal:     d.Clone(),
		headHash: genesisHash,
		clock:    func() time.Time { return time.Now().UTC() },
	}
	if n := len(r.deal.History); n > 0 {
		r.headHash = r.deal.History[n-1].ContentHash
	}
	return r
}

// WithClock overrides the clock for tests.
func (r *Record) WithClock(clock func() time.Time) *Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock = clock
	return r
}

func (r *Record) DealID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.deal.DealID
}

func (r *Record) Status() model.DealStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.deal.Status
}

func (r *Record) CurrentRound() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.deal.CurrentRound
}

func (r *Record) MaxRounds() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.deal.MaxRounds
}

func (r *Record) ExpiresAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.deal.ExpiresAt
}

func (r *Record) Policy() model.NegotiationPolicy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.deal.Policy
}

// Snapshot returns a deep copy of the deal. Mutating the copy never touches
// the record.
func (r *Record) Snapshot() model.Deal {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.deal.Clone()
}

// Clone duplicates the whole record, hash head included. The engine mutates a
// clone, persists it, and only then swaps it in, so a failed write never
// leaves divergent in-memory state.
func (r *Record) Clone() *Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &Record{
		deal:     r.deal.Clone(),
		headHash: r.headHash,
		clock:    r.clock,
	}
}

// AddParticipant registers a participant once. Duplicates are rejected.
func (r *Record) AddParticipant(id string, role model.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deal.Status == model.StatusArchived {
		return ErrArchived
	}
	for _, p := range r.deal.Participants {
		if p.ID == id {
			return fmt.Errorf("%w: %s", ErrDuplicateParticipant, id)
		}
	}
	r.deal.Participants = append(r.deal.Participants, model.Participant{
		ID:       id,
		Role:     role,
		JoinedAt: r.clock(),
	})
	r.touch()
	return nil
}

// HasParticipant reports whether id is already registered.
func (r *Record) HasParticipant(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.deal.Participants {
		if p.ID == id {
			return true
		}
	}
	return false
}

// AddRound appends one history entry. A round-consuming append (a counter
// exchange) must carry round_number == current_round+1 and advances the
// counter; any other event must carry the current round number. Anything else
// is an out-of-order write, which also catches duplicate or replayed
// deliveries from the transport layer.
func (r *Record) AddRound(round model.Round, consumesRound bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deal.Status == model.StatusArchived {
		return ErrArchived
	}

	if consumesRound {
		if round.RoundNumber != r.deal.CurrentRound+1 {
			return fmt.Errorf("%w: got %d, want %d", ErrOutOfOrderRound, round.RoundNumber, r.deal.CurrentRound+1)
		}
	} else if round.RoundNumber != r.deal.CurrentRound {
		return fmt.Errorf("%w: got %d, want %d", ErrOutOfOrderRound, round.RoundNumber, r.deal.CurrentRound)
	}

	if round.Timestamp.IsZero() {
		round.Timestamp = r.clock()
	}
	// BSON datetimes hold millisecond precision. The hash must cover exactly
	// what a store round-trip gives back, so anything finer is dropped before
	// the entry is sealed.
	round.Timestamp = round.Timestamp.Truncate(time.Millisecond)
	if round.Message != nil {
		msg := round.Message.Clone()
		msg.Timestamp = msg.Timestamp.Truncate(time.Millisecond)
		round.Message = &msg
	}
	round.PrevHash = r.headHash
	round.ContentHash = hashRound(round)

	r.deal.History = append(r.deal.History, round)
	r.headHash = round.ContentHash
	if consumesRound {
		r.deal.CurrentRound++
	}
	r.touch()
	return nil
}

// UpdateStatus is reserved for the state machine. Reason is recorded for
// REJECTED and EXPIRED outcomes.
func (r *Record) UpdateStatus(status model.DealStatus, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deal.Status == model.StatusArchived {
		return ErrArchived
	}
	r.deal.Status = status
	if reason != "" {
		r.deal.StatusReason = reason
	}
	r.touch()
	return nil
}

// SetFinalAgreement records the terminal payload. It can only happen once.
func (r *Record) SetFinalAgreement(fa model.FinalAgreement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deal.Status == model.StatusArchived {
		return ErrArchived
	}
	if r.deal.FinalAgreement != nil {
		return ErrAgreementAlreadySet
	}
	if fa.AgreedAt.IsZero() {
		fa.AgreedAt = r.clock()
	}
	r.deal.FinalAgreement = &fa
	r.touch()
	return nil
}

// Archive moves the record into its absorbing state. The deal must already be
// FINALIZED; afterwards every mutating call fails with ErrArchived.
func (r *Record) Archive() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deal.Status == model.StatusArchived {
		return ErrArchived
	}
	if r.deal.Status != model.StatusFinalized {
		return fmt.Errorf("%w: current status %s", ErrNotFinalized, r.deal.Status)
	}
	r.deal.Status = model.StatusArchived
	r.touch()
	return nil
}

// LatestOffer walks history backwards for the most recent open offer (quote
// or counter). Acceptance only binds against this entry.
func (r *Record) LatestOffer() (model.Offer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.deal.History) - 1; i >= 0; i-- {
		round := r.deal.History[i]
		if round.Message == nil {
			continue
		}
		switch round.Message.Type {
		case model.MessageQuote:
			var q model.QuoteMessage
			if err := round.Message.DecodePayload(&q); err == nil {
				return q.Offer(round.Timestamp), true
			}
		case model.MessageCounterOffer:
			var c model.CounterOfferMessage
			if err := round.Message.DecodePayload(&c); err == nil {
				return model.Offer{
					OfferID:        c.OfferID,
					SellerID:       round.Message.SenderID,
					UnitPrice:      c.UnitPrice,
					Quantity:       c.Quantity,
					DeliveryDays:   c.DeliveryDays,
					WarrantyMonths: c.WarrantyMonths,
					Certifications: append([]string(nil), c.Certifications...),
					ProducedAt:     round.Timestamp,
				}, true
			}
		}
	}
	return model.Offer{}, false
}

// VerifyChain walks the whole history and recomputes every content hash.
func (r *Record) VerifyChain() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	prev := genesisHash
	for i, round := range r.deal.History {
		if round.PrevHash != prev {
			return fmt.Errorf("chain broken at entry %d: expected prev %s, got %s", i, prev, round.PrevHash)
		}
		if computed := hashRound(round); computed != round.ContentHash {
			return fmt.Errorf("hash mismatch at entry %d", i)
		}
		prev = round.ContentHash
	}
	return nil
}

func (r *Record) touch() {
	r.deal.UpdatedAt = r.clock()
}

func hashRound(round model.Round) string {
	input := struct {
		RoundNumber int             `json:"round_number"`
		Event       model.Event     `json:"event"`
		ActorID     string          `json:"actor_id"`
		Message     *model.Envelope `json:"message,omitempty"`
		Timestamp   time.Time       `json:"timestamp"`
		PrevHash    string          `json:"prev_hash"`
	}{round.RoundNumber, round.Event, round.ActorID, round.Message, round.Timestamp, round.PrevHash}

	raw, err := json.Marshal(input)
	if err != nil {
		// Envelope payloads are plain JSON types; marshal cannot fail for them.
		return "sha256:unhashable"
	}
	h := sha256.Sum256(raw)
	return "sha256:" + hex.EncodeToString(h[:])
}
