package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Ryz3nPlayZ/B2B-Procurement/internal/model"
)

// Kind classifies engine failures. Validation and state errors are
// recoverable by the caller; round-limit is terminal for the deal;
// persistence errors mean the write did not happen and in-memory state was
// rolled back.
type Kind string

const (
	KindValidation  Kind = "VALIDATION"
	KindState       Kind = "STATE"
	KindRoundLimit  Kind = "ROUND_LIMIT"
	KindPersistence Kind = "PERSISTENCE"
	KindNotFound    Kind = "NOT_FOUND"
)

// Error is the structured failure surfaced to callers. It always names the
// violated invariant and the deal state it was observed in — never an opaque
// generic failure.
type Error struct {
	Kind      Kind
	Invariant string
	DealState model.DealStatus
	Details   []string
	Cause     error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Kind, e.Invariant)
	if e.DealState != "" {
		fmt.Fprintf(&b, " (state=%s)", e.DealState)
	}
	if len(e.Details) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Details, "; "))
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Messages renders the error as the strings carried in a SubmitResult.
func (e *Error) Messages() []string {
	if len(e.Details) > 0 {
		out := make([]string, len(e.Details))
		copy(out, e.Details)
		return out
	}
	return []string{e.Error()}
}

// IsKind reports whether err is an engine Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var engErr *Error
	return errors.As(err, &engErr) && engErr.Kind == kind
}

func validationError(state model.DealStatus, invariant string, details ...string) *Error {
	return &Error{Kind: KindValidation, Invariant: invariant, DealState: state, Details: details}
}

func stateError(state model.DealStatus, invariant string, details ...string) *Error {
	return &Error{Kind: KindState, Invariant: invariant, DealState: state, Details: details}
}

func roundLimitError(state model.DealStatus, currentRound, maxRounds int) *Error {
	return &Error{
		Kind:      KindRoundLimit,
		Invariant: "round_limit",
		DealState: state,
		Details:   []string{fmt.Sprintf("negotiation exhausted after %d of %d rounds", currentRound, maxRounds)},
	}
}

func persistenceError(state model.DealStatus, op string, cause error) *Error {
	return &Error{
		Kind:      KindPersistence,
		Invariant: "durable_append",
		DealState: state,
		Details:   []string{fmt.Sprintf("%s failed: %v", op, cause)},
		Cause:     cause,
	}
}

func notFoundError(dealID string) *Error {
	return &Error{
		Kind:      KindNotFound,
		Invariant: "deal_exists",
		Details:   []string{fmt.Sprintf("deal %s not found", dealID)},
	}
}
