// Package validator is the structural and business-rule gate for every
// inbound negotiation message. It is stateless: everything it needs to know
// about the deal arrives in the Context supplied by the caller.
package validator

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/Ryz3nPlayZ/B2B-Procurement/internal/model"
)

const (
	DefaultStalenessWindow = 5 * time.Minute
	DefaultMaxTextLength   = 10000
)

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

type Validator struct {
	staleness  time.Duration
	maxTextLen int
}

func New(staleness time.Duration, maxTextLen int) *Validator {
	if staleness <= 0 {
		staleness = DefaultStalenessWindow
	}
	if maxTextLen <= 0 {
		maxTextLen = DefaultMaxTextLength
	}
	return &Validator{staleness: staleness, maxTextLen: maxTextLen}
}

// Context carries the caller-supplied deal facts a message is checked
// against. The validator never fetches deal state itself.
type Context struct {
	DealID       string
	DealOpen     bool
	CurrentRound int
	MaxRounds    int
	ExpiresAt    time.Time
	Now          time.Time
}

func (c Context) now() time.Time {
	if c.Now.IsZero() {
		return time.Now().UTC()
	}
	return c.Now
}

// Validate checks the envelope against the per-type rule table. Structural
// failures (unknown type, missing required fields) short-circuit; every other
// rule accumulates, so the caller sees all business-rule violations at once.
// A malformed message never panics or errors out of band: the outcome is
// always a structured value.
func (v *Validator) Validate(env model.Envelope, ctx Context) model.ValidationOutcome {
	// Rule 1: structure.
	if !model.KnownMessageType(env.Type) {
		return invalid(fmt.Sprintf("unknown message type: %q", env.Type))
	}
	if strings.TrimSpace(env.SenderID) == "" {
		return invalid("missing required field: sender_id")
	}
	if missing := v.missingRequiredFields(env); len(missing) > 0 {
		errs := make([]string, 0, len(missing))
		for _, f := range missing {
			errs = append(errs, "missing required field: "+f)
		}
		return model.ValidationOutcome{IsValid: false, Errors: errs}
	}

	var errs []string
	errs = append(errs, v.rangeViolations(env, ctx)...)
	errs = append(errs, v.referentialViolations(env, ctx)...)
	errs = append(errs, v.expiryViolations(env, ctx)...)
	errs = append(errs, v.contentViolations(env)...)

	return model.ValidationOutcome{IsValid: len(errs) == 0, Errors: errs}
}

// Sanitize returns a copy of the envelope with free-text fields trimmed,
// HTML stripped, control characters removed and length capped. The original
// is left untouched.
func (v *Validator) Sanitize(env model.Envelope) model.Envelope {
	out := env.Clone()
	out.SenderID = strings.TrimSpace(out.SenderID)
	out.DealID = strings.TrimSpace(out.DealID)
	for _, field := range freeTextFields {
		raw, ok := out.Payload[field]
		if !ok {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			continue
		}
		out.Payload[field] = v.sanitizeText(s)
	}
	return out
}

func (v *Validator) sanitizeText(s string) string {
	s = htmlTagPattern.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	if len(s) > v.maxTextLen {
		cut := v.maxTextLen
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return s
}

// freeTextFields are the payload keys subject to sanitation and the size
// ceiling.
var freeTextFields = []string{"description", "notes", "reason"}

// requiredFields is the per-type rule table. A field is "present" when the
// payload carries it with a non-empty value.
var requiredFields = map[model.MessageType][]string{
	model.MessageRFQ:          {"rfq_id", "buyer_id", "description", "quantity", "max_unit_price"},
	model.MessageQuote:        {"quote_id", "rfq_id", "seller_id", "unit_price", "quantity"},
	model.MessageCounterOffer: {"offer_id", "unit_price", "round_number"},
	model.MessageAcceptance:   {"accepted_offer_id"},
	model.MessageRejection:    {"reason"},
	model.MessageHeartbeat:    nil,
}

func (v *Validator) missingRequiredFields(env model.Envelope) []string {
	var missing []string
	for _, field := range requiredFields[env.Type] {
		raw, ok := env.Payload[field]
		if !ok || isEmptyValue(raw) {
			missing = append(missing, field)
		}
	}
	return missing
}

func isEmptyValue(raw any) bool {
	switch val := raw.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	}
	return false
}

func (v *Validator) rangeViolations(env model.Envelope, ctx Context) []string {
	var errs []string

	if price, ok := payloadString(env, "unit_price"); ok {
		d, err := decimal.NewFromString(price)
		switch {
		case err != nil:
			errs = append(errs, fmt.Sprintf("unit_price is not a valid decimal: %q", price))
		case d.IsNegative():
			errs = append(errs, "unit_price must be non-negative")
		}
	}
	if price, ok := payloadString(env, "max_unit_price"); ok {
		d, err := decimal.NewFromString(price)
		switch {
		case err != nil:
			errs = append(errs, fmt.Sprintf("max_unit_price is not a valid decimal: %q", price))
		case d.IsNegative():
			errs = append(errs, "max_unit_price must be non-negative")
		}
	}

	if qty, ok, numeric := payloadInt(env, "quantity"); ok {
		if !numeric {
			errs = append(errs, "quantity must be an integer")
		} else if qty <= 0 {
			errs = append(errs, "quantity must be positive")
		}
	}
	if days, ok, numeric := payloadInt(env, "delivery_days"); ok {
		if !numeric {
			errs = append(errs, "delivery_days must be an integer")
		} else if days < 0 {
			errs = append(errs, "delivery_days must be non-negative")
		}
	}
	if months, ok, numeric := payloadInt(env, "warranty_months"); ok {
		if !numeric {
			errs = append(errs, "warranty_months must be an integer")
		} else if months < 0 {
			errs = append(errs, "warranty_months must be non-negative")
		}
	}

	if rn, ok, numeric := payloadInt(env, "round_number"); ok {
		switch {
		case !numeric:
			errs = append(errs, "round_number must be an integer")
		case rn < 0 || (ctx.MaxRounds > 0 && int(rn) > ctx.MaxRounds):
			errs = append(errs, fmt.Sprintf("round_number %d outside [0, %d]", rn, ctx.MaxRounds))
		}
	}

	for _, field := range []string{"rfq_id", "quote_id", "offer_id", "accepted_offer_id", "buyer_id", "seller_id"} {
		raw, ok := env.Payload[field]
		if !ok {
			continue
		}
		if s, isStr := raw.(string); !isStr || strings.TrimSpace(s) == "" {
			errs = append(errs, field+" must be a non-empty string")
		}
	}

	return errs
}

func (v *Validator) referentialViolations(env model.Envelope, ctx Context) []string {
	var errs []string
	if env.Type == model.MessageHeartbeat {
		return nil
	}
	if ctx.DealID != "" && env.DealID != "" && env.DealID != ctx.DealID {
		errs = append(errs, fmt.Sprintf("deal_id %q does not match the open deal %q", env.DealID, ctx.DealID))
	}
	if !ctx.DealOpen && env.Type != model.MessageRFQ {
		errs = append(errs, fmt.Sprintf("%s references a deal that is not open", env.Type))
	}
	return errs
}

func (v *Validator) expiryViolations(env model.Envelope, ctx Context) []string {
	var errs []string
	now := ctx.now()
	if !env.Timestamp.IsZero() && now.Sub(env.Timestamp) > v.staleness {
		errs = append(errs, fmt.Sprintf("message timestamp older than staleness window (%s)", v.staleness))
	}
	if !ctx.ExpiresAt.IsZero() && now.After(ctx.ExpiresAt) && env.Type != model.MessageRFQ {
		errs = append(errs, "deal is past expires_at")
	}
	return errs
}

// contentViolations reports sanitation findings instead of silently dropping
// content, so the caller can decide whether to reject or re-request.
func (v *Validator) contentViolations(env model.Envelope) []string {
	var errs []string
	for _, field := range freeTextFields {
		raw, ok := env.Payload[field]
		if !ok {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			continue
		}
		if len(s) > v.maxTextLen {
			errs = append(errs, fmt.Sprintf("%s exceeds maximum length of %d", field, v.maxTextLen))
		}
		if containsControlChars(s) {
			errs = append(errs, field+" contains disallowed control characters")
		}
	}
	return errs
}

func containsControlChars(s string) bool {
	for _, r := range s {
		if r == '\n' || r == '\t' {
			continue
		}
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}

func payloadString(env model.Envelope, field string) (string, bool) {
	raw, ok := env.Payload[field]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	if !ok {
		// Numeric JSON values are tolerated for money fields; render them.
		if f, isNum := raw.(float64); isNum {
			return decimal.NewFromFloat(f).String(), true
		}
		return "", false
	}
	return s, true
}

// payloadInt returns (value, present, numeric). JSON decodes numbers as
// float64; non-integral values are flagged rather than truncated.
func payloadInt(env model.Envelope, field string) (int64, bool, bool) {
	raw, ok := env.Payload[field]
	if !ok {
		return 0, false, false
	}
	switch val := raw.(type) {
	case float64:
		if val != float64(int64(val)) {
			return 0, true, false
		}
		return int64(val), true, true
	case int:
		return int64(val), true, true
	case int64:
		return val, true, true
	}
	return 0, true, false
}

func invalid(msg string) model.ValidationOutcome {
	return model.ValidationOutcome{IsValid: false, Errors: []string{msg}}
}
