// Package engine orchestrates the negotiation lifecycle: it validates inbound
// messages, drives the state machine, persists every accepted transition
// synchronously and emits domain events. All mutations for one deal are
// serialized behind a per-deal lock; different deals proceed concurrently.
package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Ryz3nPlayZ/B2B-Procurement/internal/clients"
	"github.com/Ryz3nPlayZ/B2B-Procurement/internal/dealrecord"
	"github.com/Ryz3nPlayZ/B2B-Procurement/internal/events"
	"github.com/Ryz3nPlayZ/B2B-Procurement/internal/model"
	"github.com/Ryz3nPlayZ/B2B-Procurement/internal/scorer"
	"github.com/Ryz3nPlayZ/B2B-Procurement/internal/statemachine"
	"github.com/Ryz3nPlayZ/B2B-Procurement/internal/store"
	"github.com/Ryz3nPlayZ/B2B-Procurement/internal/validator"
)

const (
	DefaultMaxRounds   = 10
	DefaultDealTimeout = 24 * time.Hour
)

// Options configures an Engine. Zero values fall back to package defaults.
type Options struct {
	DefaultMaxRounds int
	DefaultTimeout   time.Duration
	Policy           *clients.PolicyClient
}

// SubmitResult reports the outcome of one submitted event. When the engine
// forces a system transition (TIMEOUT, ROUND_LIMIT_REACHED, a cancellation
// rejection), Forced names the event that actually ran and Accepted is false
// for the caller's event.
type SubmitResult struct {
	Accepted bool             `json:"accepted"`
	DealID   string           `json:"deal_id"`
	NewState model.DealStatus `json:"new_state"`
	Forced   model.Event      `json:"forced_event,omitempty"`
	Errors   []string         `json:"errors,omitempty"`
}

// Engine is the single writer for all deal records.
type Engine struct {
	store     store.DealStore
	validator *validator.Validator
	events    *events.Publisher
	policy    *clients.PolicyClient

	defaultMaxRounds int
	defaultTimeout   time.Duration
	clock            func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	live  map[string]*dealrecord.Record
}

func New(st store.DealStore, v *validator.Validator, pub *events.Publisher, opts Options) *Engine {
	maxRounds := opts.DefaultMaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	timeout := opts.DefaultTimeout
	if timeout <= 0 {
		timeout = DefaultDealTimeout
	}
	return &Engine{
		store:            st,
		validator:        v,
		events:           pub,
		policy:           opts.Policy,
		defaultMaxRounds: maxRounds,
		defaultTimeout:   timeout,
		clock:            func() time.Time { return time.Now().UTC() },
		locks:            map[string]*sync.Mutex{},
		live:             map[string]*dealrecord.Record{},
	}
}

// WithClock overrides the clock for tests.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// CreateDeal validates an RFQ envelope, resolves the negotiation policy and
// opens a new deal in RFQ_OPEN. The record is persisted before the caller
// sees the deal_id.
func (e *Engine) CreateDeal(ctx context.Context, env model.Envelope, override *model.NegotiationPolicy) (model.DealSummary, error) {
	now := e.clock()
	if env.Type != model.MessageRFQ {
		return model.DealSummary{}, validationError("", "rfq_required",
			fmt.Sprintf("deal creation requires an rfq message, got %q", env.Type))
	}
	outcome := e.validator.Validate(env, validator.Context{DealOpen: true, Now: now})
	if !outcome.IsValid {
		return model.DealSummary{}, validationError("", "message_schema", outcome.Errors...)
	}
	env = e.validator.Sanitize(env)

	var rfq model.RFQMessage
	if err := env.DecodePayload(&rfq); err != nil {
		return model.DealSummary{}, validationError("", "message_schema", "rfq payload malformed: "+err.Error())
	}

	policy, err := e.resolvePolicy(ctx, rfq, override)
	if err != nil {
		return model.DealSummary{}, err
	}

	dealID := generateID("deal")
	env.DealID = dealID

	timeout := e.defaultTimeout
	if policy.TimeoutHours > 0 {
		timeout = time.Duration(policy.TimeoutHours) * time.Hour
	}

	rec := dealrecord.New(dealID, policy, timeout).WithClock(e.clock)
	if err := rec.AddParticipant(rfq.BuyerID, model.RoleBuyer); err != nil {
		return model.DealSummary{}, stateError(rec.Status(), "participant_registration", err.Error())
	}

	round := model.Round{
		RoundNumber: rec.CurrentRound(),
		Event:       model.EventRFQCreated,
		ActorID:     env.SenderID,
		Message:     &env,
		Timestamp:   now,
	}
	machine := statemachine.New(rec)
	if _, err := machine.Transition(model.EventRFQCreated, &round, ""); err != nil {
		return model.DealSummary{}, stateError(rec.Status(), "lifecycle_transition", err.Error())
	}

	if err := e.store.Save(ctx, rec.Snapshot()); err != nil {
		return model.DealSummary{}, persistenceError(rec.Status(), "save deal", err)
	}

	e.mu.Lock()
	e.live[dealID] = rec
	e.mu.Unlock()

	slog.InfoContext(ctx, "deal_created",
		"deal_id", dealID,
		"buyer_id", rfq.BuyerID,
		"max_rounds", rec.MaxRounds(),
		"expires_at", rec.ExpiresAt())
	e.publish(ctx, events.EventDealCreated, rec)

	return rec.Snapshot().Summarize(), nil
}

// Submit applies one lifecycle event to a deal. The whole flow runs under the
// deal's lock: validate, check expiry and round budget, run the transition on
// a clone, persist, then swap the clone in. A persistence failure leaves both
// the store and the in-memory record exactly as they were.
func (e *Engine) Submit(ctx context.Context, dealID string, event model.Event, env *model.Envelope) (SubmitResult, error) {
	lock := e.lockFor(dealID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := e.loadRecord(ctx, dealID)
	if err != nil {
		return SubmitResult{DealID: dealID}, err
	}

	now := e.clock()
	status := rec.Status()

	// Expiry is evaluated before the submitted event. A deal past its
	// deadline transitions to EXPIRED no matter what arrived; if two events
	// race the timeout, the timeout wins.
	if status.Active() && now.After(rec.ExpiresAt()) {
		newState, perr := e.applyForced(ctx, dealID, rec, model.EventTimeout, "deal timed out", now)
		if perr != nil {
			return SubmitResult{DealID: dealID, NewState: status}, perr
		}
		if event == model.EventTimeout {
			return SubmitResult{Accepted: true, DealID: dealID, NewState: newState}, nil
		}
		serr := stateError(newState, "expiry_precedence",
			fmt.Sprintf("%s rejected: deal expired at %s", event, rec.ExpiresAt().Format(time.RFC3339)))
		return SubmitResult{DealID: dealID, NewState: newState, Forced: model.EventTimeout, Errors: serr.Messages()}, serr
	}
	if event == model.EventTimeout {
		// Explicit TIMEOUT on a live deal is a no-op rejection, not a
		// forced expiry.
		serr := stateError(status, "expiry_precedence", "deal has not reached expires_at")
		return SubmitResult{DealID: dealID, NewState: status, Errors: serr.Messages()}, serr
	}

	// A counter exchange with the budget exhausted forces termination
	// instead of erroring in place.
	if statemachine.ConsumesRound(event) && rec.CurrentRound() >= rec.MaxRounds() {
		newState, perr := e.applyForced(ctx, dealID, rec, model.EventRoundLimitReached, "negotiation round limit reached", now)
		if perr != nil {
			return SubmitResult{DealID: dealID, NewState: status}, perr
		}
		rlErr := roundLimitError(newState, rec.CurrentRound(), rec.MaxRounds())
		return SubmitResult{DealID: dealID, NewState: newState, Forced: model.EventRoundLimitReached, Errors: rlErr.Messages()}, rlErr
	}

	if event == model.EventArchive && status != model.StatusFinalized {
		return e.cancel(ctx, dealID, rec, now)
	}

	if statemachine.CarriesPayload(event) {
		if env == nil {
			serr := validationError(status, "payload_required", fmt.Sprintf("%s requires a message envelope", event))
			return SubmitResult{DealID: dealID, NewState: status, Errors: serr.Messages()}, serr
		}
		// The declared message type is bound to the event before any field
		// rules run, so a relabeled envelope (a heartbeat submitted as a
		// quote) cannot slip past the per-type rule table.
		if want, ok := statemachine.PayloadType(event); ok && env.Type != want {
			serr := validationError(status, "message_schema",
				fmt.Sprintf("%s requires a %s message, got %q", event, want, env.Type))
			return SubmitResult{DealID: dealID, NewState: status, Errors: serr.Messages()}, serr
		}
		outcome := e.validator.Validate(*env, validator.Context{
			DealID:       dealID,
			DealOpen:     status.Active(),
			CurrentRound: rec.CurrentRound(),
			MaxRounds:    rec.MaxRounds(),
			ExpiresAt:    rec.ExpiresAt(),
			Now:          now,
		})
		if !outcome.IsValid {
			serr := validationError(status, "message_schema", outcome.Errors...)
			return SubmitResult{DealID: dealID, NewState: status, Errors: serr.Messages()}, serr
		}
		sanitized := e.validator.Sanitize(*env)
		env = &sanitized
	}

	machine := statemachine.New(rec)
	if err := machine.Check(event, now); err != nil {
		serr := stateError(status, "lifecycle_transition", err.Error())
		return SubmitResult{DealID: dealID, NewState: status, Errors: serr.Messages()}, serr
	}

	var agreement *model.FinalAgreement
	claimedRound := -1
	reason := ""
	switch event {
	case model.EventCounterSent, model.EventCounterReceived:
		var counter model.CounterOfferMessage
		if err := env.DecodePayload(&counter); err != nil {
			serr := validationError(status, "message_schema", "counter payload malformed: "+err.Error())
			return SubmitResult{DealID: dealID, NewState: status, Errors: serr.Messages()}, serr
		}
		claimedRound = counter.RoundNumber
	case model.EventOfferAccepted:
		var acc model.AcceptanceMessage
		if err := env.DecodePayload(&acc); err != nil {
			serr := validationError(status, "message_schema", "acceptance payload malformed: "+err.Error())
			return SubmitResult{DealID: dealID, NewState: status, Errors: serr.Messages()}, serr
		}
		latest, ok := rec.LatestOffer()
		if !ok || latest.OfferID != acc.AcceptedOfferID {
			serr := validationError(status, "acceptance_binds_latest_offer",
				fmt.Sprintf("accepted_offer_id %q is not the offer currently on the table", acc.AcceptedOfferID))
			return SubmitResult{DealID: dealID, NewState: status, Errors: serr.Messages()}, serr
		}
		agreement = &model.FinalAgreement{
			OfferID:   latest.OfferID,
			SellerID:  latest.SellerID,
			UnitPrice: latest.UnitPrice,
			Quantity:  latest.Quantity,
			AgreedAt:  now,
		}
	case model.EventOfferRejected:
		var rej model.RejectionMessage
		if err := env.DecodePayload(&rej); err == nil {
			reason = rej.Reason
		}
	}

	// Counter exchanges carry the sender's claimed round number; a stale or
	// replayed delivery fails the append below and the deal is untouched.
	roundNumber := rec.CurrentRound()
	if statemachine.ConsumesRound(event) {
		roundNumber++
		if claimedRound >= 0 {
			roundNumber = claimedRound
		}
	}
	actor := "system"
	if env != nil {
		actor = env.SenderID
	}
	round := model.Round{
		RoundNumber: roundNumber,
		Event:       event,
		ActorID:     actor,
		Message:     env,
		Timestamp:   now,
	}

	clone := rec.Clone()
	if event == model.EventQuoteReceived && !clone.HasParticipant(env.SenderID) {
		if err := clone.AddParticipant(env.SenderID, model.RoleSeller); err != nil {
			serr := stateError(status, "participant_registration", err.Error())
			return SubmitResult{DealID: dealID, NewState: status, Errors: serr.Messages()}, serr
		}
	}

	newState, err := statemachine.New(clone).Transition(event, &round, reason)
	if err != nil {
		invariant := "lifecycle_transition"
		if errors.Is(err, dealrecord.ErrOutOfOrderRound) {
			invariant = "round_ordering"
		}
		serr := stateError(status, invariant, err.Error())
		return SubmitResult{DealID: dealID, NewState: status, Errors: serr.Messages()}, serr
	}
	if agreement != nil {
		if err := clone.SetFinalAgreement(*agreement); err != nil {
			serr := stateError(newState, "final_agreement_once", err.Error())
			return SubmitResult{DealID: dealID, NewState: status, Errors: serr.Messages()}, serr
		}
	}

	if perr := e.persistAndSwap(ctx, dealID, clone, event); perr != nil {
		return SubmitResult{DealID: dealID, NewState: status}, perr
	}

	slog.InfoContext(ctx, "deal_event_applied",
		"deal_id", dealID,
		"event", event,
		"actor", actor,
		"round", clone.CurrentRound(),
		"new_state", newState)
	e.publish(ctx, domainEventFor(event, newState), clone)

	return SubmitResult{Accepted: true, DealID: dealID, NewState: newState}, nil
}

// GetState returns the read-only summary for a deal, archived deals included.
func (e *Engine) GetState(ctx context.Context, dealID string) (model.DealSummary, error) {
	e.mu.Lock()
	rec, cached := e.live[dealID]
	e.mu.Unlock()
	if cached {
		return rec.Snapshot().Summarize(), nil
	}

	deal, err := e.store.Get(ctx, dealID)
	if err != nil {
		return model.DealSummary{}, persistenceError("", "load deal", err)
	}
	if deal == nil {
		if deal, err = e.store.GetArchived(ctx, dealID); err != nil {
			return model.DealSummary{}, persistenceError("", "load archived deal", err)
		}
	}
	if deal == nil {
		return model.DealSummary{}, notFoundError(dealID)
	}
	return deal.Summarize(), nil
}

// ScoreOffers evaluates a candidate set against the deal's policy. The deal
// state is not mutated; scoring is a pure read.
func (e *Engine) ScoreOffers(ctx context.Context, dealID string, offers []model.Offer) ([]model.RankedOffer, error) {
	lock := e.lockFor(dealID)
	lock.Lock()
	rec, err := e.loadRecord(ctx, dealID)
	lock.Unlock()
	if err != nil {
		return nil, err
	}

	policy := rec.Policy()
	sc, err := scorer.FromPolicy(policy)
	if err != nil {
		return nil, validationError(rec.Status(), "scoring_config", err.Error())
	}
	sctx, err := scorer.ContextFromPolicy(policy)
	if err != nil {
		return nil, validationError(rec.Status(), "scoring_config", err.Error())
	}

	ranked, err := sc.Compare(offers, sctx)
	if err != nil {
		return nil, validationError(rec.Status(), "offer_pricing", err.Error())
	}
	slog.InfoContext(ctx, "offers_scored", "deal_id", dealID, "candidates", len(offers))
	return ranked, nil
}

// VerifyHistory recomputes the hash chain of a deal's round history.
func (e *Engine) VerifyHistory(ctx context.Context, dealID string) error {
	lock := e.lockFor(dealID)
	lock.Lock()
	defer lock.Unlock()
	rec, err := e.loadRecord(ctx, dealID)
	if err != nil {
		return err
	}
	if verr := rec.VerifyChain(); verr != nil {
		return stateError(rec.Status(), "history_integrity", verr.Error())
	}
	return nil
}

// RunSweeper periodically forces TIMEOUT on expired open deals and
// ROUND_LIMIT_REACHED on deals that have exhausted their round budget while
// still negotiating. It returns when ctx is cancelled.
func (e *Engine) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.sweep(ctx)
		}
	}
}

func (e *Engine) sweep(ctx context.Context) {
	deals, err := e.store.ListOpen(ctx)
	if err != nil {
		slog.WarnContext(ctx, "sweep_list_failed", "error", err)
		return
	}
	now := e.clock()
	for _, deal := range deals {
		if !deal.Status.Active() {
			continue
		}
		switch {
		case now.After(deal.ExpiresAt):
			if _, err := e.Submit(ctx, deal.DealID, model.EventTimeout, nil); err != nil && !IsKind(err, KindState) {
				slog.WarnContext(ctx, "sweep_timeout_failed", "deal_id", deal.DealID, "error", err)
			}
		case deal.CurrentRound >= deal.MaxRounds &&
			(deal.Status == model.StatusEvaluating || deal.Status == model.StatusNegotiating):
			if err := e.forceRoundLimit(ctx, deal.DealID); err != nil {
				slog.WarnContext(ctx, "sweep_round_limit_failed", "deal_id", deal.DealID, "error", err)
			}
		}
	}
}

func (e *Engine) forceRoundLimit(ctx context.Context, dealID string) error {
	lock := e.lockFor(dealID)
	lock.Lock()
	defer lock.Unlock()
	rec, err := e.loadRecord(ctx, dealID)
	if err != nil {
		return err
	}
	if !statemachine.New(rec).CanTransition(model.EventRoundLimitReached) {
		return nil
	}
	_, err = e.applyForced(ctx, dealID, rec, model.EventRoundLimitReached, "negotiation round limit reached", e.clock())
	return err
}

// cancel handles ARCHIVE requested before FINALIZED. An active deal is forced
// into REJECTED first so it cannot skip lifecycle states; a terminal-eligible
// deal cascades FINALIZE then ARCHIVE in one persisted step.
func (e *Engine) cancel(ctx context.Context, dealID string, rec *dealrecord.Record, now time.Time) (SubmitResult, error) {
	status := rec.Status()

	if status.Active() {
		newState, perr := e.applyForced(ctx, dealID, rec, model.EventOfferRejected, "cancelled before completion", now)
		if perr != nil {
			return SubmitResult{DealID: dealID, NewState: status}, perr
		}
		serr := stateError(newState, "archive_requires_finalized",
			"active deal cancelled; resubmit ARCHIVE once finalized")
		return SubmitResult{DealID: dealID, NewState: newState, Forced: model.EventOfferRejected, Errors: serr.Messages()}, serr
	}

	if !status.TerminalEligible() {
		serr := stateError(status, "archive_requires_finalized",
			fmt.Sprintf("ARCHIVE not allowed in %s", status))
		return SubmitResult{DealID: dealID, NewState: status, Errors: serr.Messages()}, serr
	}

	clone := rec.Clone()
	machine := statemachine.New(clone)
	for _, ev := range []model.Event{model.EventFinalize, model.EventArchive} {
		round := model.Round{
			RoundNumber: clone.CurrentRound(),
			Event:       ev,
			ActorID:     "system",
			Timestamp:   now,
		}
		if _, err := machine.Transition(ev, &round, ""); err != nil {
			return SubmitResult{DealID: dealID, NewState: clone.Status()},
				stateError(clone.Status(), "lifecycle_transition", err.Error())
		}
	}

	if perr := e.persistAndSwap(ctx, dealID, clone, model.EventArchive); perr != nil {
		return SubmitResult{DealID: dealID, NewState: status}, perr
	}
	slog.InfoContext(ctx, "deal_archived", "deal_id", dealID, "cascaded_from", status)
	e.publish(ctx, events.EventDealArchived, clone)
	return SubmitResult{Accepted: true, DealID: dealID, NewState: model.StatusArchived}, nil
}

// applyForced runs a system transition (TIMEOUT, ROUND_LIMIT_REACHED, forced
// rejection) with the clone-persist-swap discipline. Caller holds the deal
// lock.
func (e *Engine) applyForced(ctx context.Context, dealID string, rec *dealrecord.Record, event model.Event, reason string, now time.Time) (model.DealStatus, error) {
	clone := rec.Clone()
	round := model.Round{
		RoundNumber: clone.CurrentRound(),
		Event:       event,
		ActorID:     "system",
		Timestamp:   now,
	}
	newState, err := statemachine.New(clone).Transition(event, &round, reason)
	if err != nil {
		return rec.Status(), stateError(rec.Status(), "lifecycle_transition", err.Error())
	}
	if perr := e.persistAndSwap(ctx, dealID, clone, event); perr != nil {
		return rec.Status(), perr
	}
	slog.InfoContext(ctx, "deal_event_forced",
		"deal_id", dealID, "event", event, "new_state", newState, "reason", reason)
	e.publish(ctx, domainEventFor(event, newState), clone)
	return newState, nil
}

// persistAndSwap writes the mutated clone to the store and, only on success,
// makes it the live record. ARCHIVE moves the document to the archive store
// and evicts the deal from the cache.
func (e *Engine) persistAndSwap(ctx context.Context, dealID string, clone *dealrecord.Record, event model.Event) *Error {
	snapshot := clone.Snapshot()
	if event == model.EventArchive {
		if err := e.store.Archive(ctx, snapshot); err != nil {
			return persistenceError(clone.Status(), "archive deal", err)
		}
		// The per-deal lock goes with the record: later submissions hit
		// GetArchived and never mutate, so a fresh mutex is fine.
		e.mu.Lock()
		delete(e.live, dealID)
		delete(e.locks, dealID)
		e.mu.Unlock()
		return nil
	}
	if err := e.store.Update(ctx, snapshot); err != nil {
		return persistenceError(clone.Status(), "update deal", err)
	}
	e.mu.Lock()
	e.live[dealID] = clone
	e.mu.Unlock()
	return nil
}

func (e *Engine) loadRecord(ctx context.Context, dealID string) (*dealrecord.Record, error) {
	e.mu.Lock()
	rec, ok := e.live[dealID]
	e.mu.Unlock()
	if ok {
		return rec, nil
	}

	deal, err := e.store.Get(ctx, dealID)
	if err != nil {
		return nil, persistenceError("", "load deal", err)
	}
	if deal == nil {
		archived, aerr := e.store.GetArchived(ctx, dealID)
		if aerr != nil {
			return nil, persistenceError("", "load archived deal", aerr)
		}
		if archived != nil {
			return nil, stateError(model.StatusArchived, "archived_is_absorbing",
				fmt.Sprintf("deal %s is archived and read-only", dealID))
		}
		return nil, notFoundError(dealID)
	}

	rec = dealrecord.FromDeal(*deal).WithClock(e.clock)
	e.mu.Lock()
	e.live[dealID] = rec
	e.mu.Unlock()
	return rec, nil
}

func (e *Engine) lockFor(dealID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[dealID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[dealID] = lock
	}
	return lock
}

// resolvePolicy layers policy sources: engine defaults, then the policy
// service's answer for the buyer (when configured), then the caller's
// explicit override, then RFQ-derived values for anything still unset.
func (e *Engine) resolvePolicy(ctx context.Context, rfq model.RFQMessage, override *model.NegotiationPolicy) (model.NegotiationPolicy, error) {
	policy := model.NegotiationPolicy{MaxRounds: e.defaultMaxRounds}

	if e.policy != nil && e.policy.Enabled() {
		fetched, err := e.policy.GetPolicy(ctx, rfq.BuyerID)
		if err != nil {
			slog.WarnContext(ctx, "policy_lookup_failed", "buyer_id", rfq.BuyerID, "error", err)
		} else if fetched != nil {
			mergePolicy(&policy, *fetched)
		}
	}
	if override != nil {
		mergePolicy(&policy, *override)
	}

	if policy.BudgetCeiling == "" {
		policy.BudgetCeiling = rfq.MaxUnitPrice
	}
	if policy.MaxDeliveryDays == 0 && rfq.DeliveryDeadlineDays > 0 {
		policy.MaxDeliveryDays = rfq.DeliveryDeadlineDays
	}
	if len(policy.RequiredCertifications) == 0 {
		policy.RequiredCertifications = append([]string(nil), rfq.RequiredCertifications...)
	}
	if policy.MaxRounds <= 0 {
		policy.MaxRounds = e.defaultMaxRounds
	}

	// Reject unusable scoring configuration at creation time, not at the
	// first score request.
	if _, err := scorer.FromPolicy(policy); err != nil {
		return model.NegotiationPolicy{}, validationError("", "scoring_config", err.Error())
	}
	return policy, nil
}

func mergePolicy(dst *model.NegotiationPolicy, src model.NegotiationPolicy) {
	if src.BudgetCeiling != "" {
		dst.BudgetCeiling = src.BudgetCeiling
	}
	if src.MaxRounds > 0 {
		dst.MaxRounds = src.MaxRounds
	}
	if src.TimeoutHours > 0 {
		dst.TimeoutHours = src.TimeoutHours
	}
	if src.MaxDeliveryDays > 0 {
		dst.MaxDeliveryDays = src.MaxDeliveryDays
	}
	if src.IdealWarrantyMonths > 0 {
		dst.IdealWarrantyMonths = src.IdealWarrantyMonths
	}
	if len(src.RequiredCertifications) > 0 {
		dst.RequiredCertifications = append([]string(nil), src.RequiredCertifications...)
	}
	if src.Weights != nil {
		w := *src.Weights
		dst.Weights = &w
	}
	if src.Thresholds != nil {
		th := *src.Thresholds
		dst.Thresholds = &th
	}
}

func (e *Engine) publish(ctx context.Context, eventType string, rec *dealrecord.Record) {
	if e.events == nil || eventType == "" {
		return
	}
	snapshot := rec.Snapshot()
	_ = e.events.Publish(ctx, eventType, map[string]any{
		"deal_id":       snapshot.DealID,
		"status":        snapshot.Status,
		"current_round": snapshot.CurrentRound,
	})
}

func domainEventFor(event model.Event, newState model.DealStatus) string {
	switch event {
	case model.EventRFQCreated:
		return events.EventDealCreated
	case model.EventQuoteReceived:
		return events.EventDealQuoteReceived
	case model.EventCounterSent, model.EventCounterReceived:
		return events.EventDealCounter
	case model.EventOfferAccepted:
		return events.EventDealAgreed
	case model.EventOfferRejected, model.EventRoundLimitReached:
		return events.EventDealRejected
	case model.EventTimeout:
		return events.EventDealExpired
	case model.EventFinalize:
		return events.EventDealFinalized
	case model.EventArchive:
		return events.EventDealArchived
	}
	if newState == model.StatusArchived {
		return events.EventDealArchived
	}
	return ""
}

func generateID(prefix string) string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return prefix + "_" + hex.EncodeToString([]byte(time.Now().UTC().Format("150405.000000000")))
	}
	return prefix + "_" + hex.EncodeToString(b[:])
}
