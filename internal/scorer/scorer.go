// Package scorer evaluates offers against configurable multi-criteria
// weights. Scoring is pure: same offers, same weights, same context always
// produce identical results and ordering.
package scorer

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Ryz3nPlayZ/B2B-Procurement/internal/model"
)

const (
	DefaultMaxDeliveryDays     = 30
	DefaultIdealWarrantyMonths = 24

	weightSumTolerance = 1e-6
)

var (
	ErrWeightsSum       = errors.New("criteria weights must sum to 1.0")
	ErrThresholdInvalid = errors.New("recommendation thresholds must satisfy 0 <= reject < accept <= 1")
)

type Scorer struct {
	weights    model.CriteriaWeights
	thresholds model.RecommendationThresholds
}

// New validates the configuration at construction. Weights must sum to 1.0
// and the reject cut point must sit below the accept cut point.
func New(weights model.CriteriaWeights, thresholds model.RecommendationThresholds) (*Scorer, error) {
	sum := weights.Price + weights.Delivery + weights.Warranty + weights.SpecMatch
	if math.Abs(sum-1.0) > weightSumTolerance {
		return nil, fmt.Errorf("%w: got %v", ErrWeightsSum, sum)
	}
	if weights.Price < 0 || weights.Delivery < 0 || weights.Warranty < 0 || weights.SpecMatch < 0 {
		return nil, fmt.Errorf("%w: negative weight", ErrWeightsSum)
	}
	if thresholds.Reject < 0 || thresholds.Accept > 1 || thresholds.Reject >= thresholds.Accept {
		return nil, fmt.Errorf("%w: accept=%v reject=%v", ErrThresholdInvalid, thresholds.Accept, thresholds.Reject)
	}
	return &Scorer{weights: weights, thresholds: thresholds}, nil
}

// Default returns a scorer with the stock weights and thresholds.
func Default() *Scorer {
	s, err := New(model.DefaultCriteriaWeights(), model.DefaultRecommendationThresholds())
	if err != nil {
		panic(err) // defaults are known valid
	}
	return s
}

// FromPolicy builds a scorer from a deal policy, falling back to defaults for
// anything the policy leaves unset.
func FromPolicy(policy model.NegotiationPolicy) (*Scorer, error) {
	weights := model.DefaultCriteriaWeights()
	if policy.Weights != nil {
		weights = *policy.Weights
	}
	thresholds := model.DefaultRecommendationThresholds()
	if policy.Thresholds != nil {
		thresholds = *policy.Thresholds
	}
	return New(weights, thresholds)
}

// Context is the pricing and requirements frame offers are normalized
// against. MinObservedPrice is the floor for the price criterion; Compare
// fills it from the candidate set, a zero value floors at zero.
type Context struct {
	BudgetCeiling          decimal.Decimal
	MinObservedPrice       decimal.Decimal
	MaxDeliveryDays        int
	IdealWarrantyMonths    int
	RequiredCertifications []string
}

// ContextFromPolicy derives the scoring context from a deal policy.
func ContextFromPolicy(policy model.NegotiationPolicy) (Context, error) {
	ceiling, err := decimal.NewFromString(policy.BudgetCeiling)
	if err != nil {
		return Context{}, fmt.Errorf("parse budget ceiling: %w", err)
	}
	return Context{
		BudgetCeiling:          ceiling,
		MaxDeliveryDays:        policy.MaxDeliveryDays,
		IdealWarrantyMonths:    policy.IdealWarrantyMonths,
		RequiredCertifications: policy.RequiredCertifications,
	}, nil
}

// Score evaluates one offer. Criteria are computed in a fixed order so the
// result is bit-identical across calls with identical inputs.
func (s *Scorer) Score(offer model.Offer, ctx Context) (model.ScoreResult, error) {
	price, err := offer.Price()
	if err != nil {
		return model.ScoreResult{}, fmt.Errorf("offer %s: parse unit price: %w", offer.OfferID, err)
	}

	priceScore := s.scorePrice(price, ctx)
	deliveryScore := s.scoreDelivery(offer.DeliveryDays, ctx)
	warrantyScore := s.scoreWarranty(offer.WarrantyMonths, ctx)
	specScore := s.scoreSpecMatch(offer.Certifications, ctx)

	total := s.weights.Price*priceScore +
		s.weights.Delivery*deliveryScore +
		s.weights.Warranty*warrantyScore +
		s.weights.SpecMatch*specScore

	return model.ScoreResult{
		OfferID:    offer.OfferID,
		TotalScore: total,
		ComponentScores: map[string]model.ComponentScore{
			"price":      {Score: priceScore, Weight: s.weights.Price},
			"delivery":   {Score: deliveryScore, Weight: s.weights.Delivery},
			"warranty":   {Score: warrantyScore, Weight: s.weights.Warranty},
			"spec_match": {Score: specScore, Weight: s.weights.SpecMatch},
		},
		Recommendation: s.recommend(total),
	}, nil
}

// Compare scores every candidate against a shared context (the minimum
// observed price among the set becomes the price floor), then ranks them
// descending by total score. Ties break on lowest price, then earliest
// produced_at.
func (s *Scorer) Compare(offers []model.Offer, ctx Context) ([]model.RankedOffer, error) {
	if len(offers) == 0 {
		return nil, nil
	}

	prices := make([]decimal.Decimal, len(offers))
	for i, offer := range offers {
		p, err := offer.Price()
		if err != nil {
			return nil, fmt.Errorf("offer %s: parse unit price: %w", offer.OfferID, err)
		}
		prices[i] = p
	}

	minObserved := prices[0]
	for _, p := range prices[1:] {
		if p.LessThan(minObserved) {
			minObserved = p
		}
	}
	ctx.MinObservedPrice = minObserved

	ranked := make([]model.RankedOffer, 0, len(offers))
	for _, offer := range offers {
		result, err := s.Score(offer, ctx)
		if err != nil {
			return nil, err
		}
		ranked = append(ranked, model.RankedOffer{Offer: offer, Result: result})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Result.TotalScore != ranked[j].Result.TotalScore {
			return ranked[i].Result.TotalScore > ranked[j].Result.TotalScore
		}
		pi, pj := mustPrice(ranked[i].Offer), mustPrice(ranked[j].Offer)
		if !pi.Equal(pj) {
			return pi.LessThan(pj)
		}
		return ranked[i].Offer.ProducedAt.Before(ranked[j].Offer.ProducedAt)
	})

	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked, nil
}

// scorePrice is inverse-linear between the observed floor and the budget
// ceiling: at or below the floor scores 1, at or above the ceiling scores 0.
func (s *Scorer) scorePrice(price decimal.Decimal, ctx Context) float64 {
	ceiling := ctx.BudgetCeiling
	if ceiling.IsZero() || ceiling.IsNegative() {
		return 0
	}
	floor := ctx.MinObservedPrice
	if floor.GreaterThanOrEqual(ceiling) {
		floor = decimal.Zero
	}
	if price.GreaterThanOrEqual(ceiling) {
		return 0
	}
	if price.LessThanOrEqual(floor) {
		return 1
	}
	span := ceiling.Sub(floor)
	frac, _ := ceiling.Sub(price).Div(span).Float64()
	return clamp01(frac)
}

// scoreDelivery is inverse-linear against the maximum acceptable delay.
func (s *Scorer) scoreDelivery(days int, ctx Context) float64 {
	maxDays := ctx.MaxDeliveryDays
	if maxDays <= 0 {
		maxDays = DefaultMaxDeliveryDays
	}
	if days <= 0 {
		return 1
	}
	return clamp01(1 - float64(days)/float64(maxDays))
}

// scoreWarranty is linear, capped at the ideal warranty length.
func (s *Scorer) scoreWarranty(months int, ctx Context) float64 {
	ideal := ctx.IdealWarrantyMonths
	if ideal <= 0 {
		ideal = DefaultIdealWarrantyMonths
	}
	if months <= 0 {
		return 0
	}
	return clamp01(float64(months) / float64(ideal))
}

// scoreSpecMatch is the fraction of required certifications present. With no
// requirements every offer matches fully.
func (s *Scorer) scoreSpecMatch(certs []string, ctx Context) float64 {
	if len(ctx.RequiredCertifications) == 0 {
		return 1
	}
	have := make(map[string]struct{}, len(certs))
	for _, c := range certs {
		have[c] = struct{}{}
	}
	matched := 0
	for _, required := range ctx.RequiredCertifications {
		if _, ok := have[required]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(ctx.RequiredCertifications))
}

func (s *Scorer) recommend(total float64) model.Recommendation {
	switch {
	case total >= s.thresholds.Accept:
		return model.RecommendAccept
	case total < s.thresholds.Reject:
		return model.RecommendReject
	default:
		return model.RecommendNegotiate
	}
}

func mustPrice(o model.Offer) decimal.Decimal {
	p, err := o.Price()
	if err != nil {
		return decimal.Zero // Compare already parsed every price
	}
	return p
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
