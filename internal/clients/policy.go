// Package clients holds HTTP clients for optional collaborating services.
package clients

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Ryz3nPlayZ/B2B-Procurement/internal/httpclient"
	"github.com/Ryz3nPlayZ/B2B-Procurement/internal/model"
)

// PolicyClient fetches per-buyer negotiation policy (budget ceiling, round
// limits, required certifications, scoring weights) from an external policy
// service. The engine treats the service as optional: when no base URL is
// configured, or the buyer has no policy, callers fall back to defaults.
type PolicyClient struct {
	baseURL string
	client  *httpclient.Client
}

func NewPolicyClient(baseURL string) *PolicyClient {
	return &PolicyClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  httpclient.NewClient("policy", 5*time.Second),
	}
}

// Enabled reports whether a policy service is configured.
func (c *PolicyClient) Enabled() bool {
	return c.baseURL != ""
}

// GetPolicy returns the buyer's negotiation policy, or (nil, nil) when the
// service is disabled or has no policy for the buyer.
func (c *PolicyClient) GetPolicy(ctx context.Context, buyerID string) (*model.NegotiationPolicy, error) {
	if !c.Enabled() {
		return nil, nil
	}
	var policy model.NegotiationPolicy
	err := c.client.GetJSON(ctx, c.baseURL+"/v1/policies/"+url.PathEscape(buyerID), &policy)
	if err != nil {
		var httpErr *httpclient.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &policy, nil
}
