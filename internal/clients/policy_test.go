package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetPolicyDisabled(t *testing.T) {
	c := NewPolicyClient("")
	if c.Enabled() {
		t.Fatal("Enabled() = true with empty base URL")
	}
	policy, err := c.GetPolicy(context.Background(), "buyer_x")
	if err != nil || policy != nil {
		t.Errorf("GetPolicy() = (%v, %v), want (nil, nil)", policy, err)
	}
}

func TestGetPolicy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/policies/buyer_x" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"budget_ceiling":"250.00","max_rounds":6,"required_certifications":["ISO9001"]}`))
	}))
	defer server.Close()

	c := NewPolicyClient(server.URL + "/")
	policy, err := c.GetPolicy(context.Background(), "buyer_x")
	if err != nil {
		t.Fatalf("GetPolicy() error = %v", err)
	}
	if policy == nil || policy.BudgetCeiling != "250.00" || policy.MaxRounds != 6 {
		t.Errorf("policy = %+v", policy)
	}
}

func TestGetPolicyNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no policy", http.StatusNotFound)
	}))
	defer server.Close()

	c := NewPolicyClient(server.URL)
	policy, err := c.GetPolicy(context.Background(), "buyer_unknown")
	if err != nil || policy != nil {
		t.Errorf("GetPolicy(missing) = (%v, %v), want (nil, nil)", policy, err)
	}
}
