package integration

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"
)

func getTestClient() *Client {
	baseURL := DefaultBaseURL
	if u := os.Getenv("ENGINE_URL"); u != "" {
		baseURL = u
	}
	return NewClient(baseURL)
}

// skipIfNoService skips the test if the engine is not reachable.
func skipIfNoService(t *testing.T, c *Client) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.HealthCheck(ctx); err != nil {
		t.Skipf("Service not available: %v (run with docker-compose up)", err)
	}
}

type dealSummary struct {
	DealID       string `json:"deal_id"`
	Status       string `json:"status"`
	CurrentRound int    `json:"current_round"`
}

type submitResult struct {
	Accepted bool     `json:"accepted"`
	NewState string   `json:"new_state"`
	Forced   string   `json:"forced_event,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

func envelope(msgType, dealID, senderID string, payload map[string]any) map[string]any {
	return map[string]any{
		"type":      msgType,
		"deal_id":   dealID,
		"sender_id": senderID,
		"timestamp": time.Now().UTC(),
		"payload":   payload,
	}
}

// TestNegotiationWorkflow walks a deal from RFQ to archive.
func TestNegotiationWorkflow(t *testing.T) {
	c := getTestClient()
	skipIfNoService(t, c)
	ctx := context.Background()

	t.Log("Step 1: Creating deal from RFQ...")
	var deal dealSummary
	status, err := c.RequestJSON(ctx, http.MethodPost, "/v1/deals", map[string]any{
		"message": envelope("rfq", "", "buyer_int", map[string]any{
			"rfq_id": "rfq_int_1", "buyer_id": "buyer_int", "description": "integration test parts",
			"quantity": 100, "max_unit_price": "10.00",
		}),
	}, &deal)
	if err != nil || status != http.StatusCreated {
		t.Fatalf("create deal: status %d, err %v", status, err)
	}
	t.Logf("  Created deal: %s", deal.DealID)

	eventsPath := "/v1/deals/" + deal.DealID + "/events"

	t.Log("Step 2: Submitting quote...")
	var res submitResult
	status, err = c.RequestJSON(ctx, http.MethodPost, eventsPath, map[string]any{
		"event": "QUOTE_RECEIVED",
		"message": envelope("quote", deal.DealID, "seller_int", map[string]any{
			"quote_id": "q_int_1", "rfq_id": "rfq_int_1", "seller_id": "seller_int",
			"unit_price": "8.50", "quantity": 100, "delivery_days": 7, "warranty_months": 12,
		}),
	}, &res)
	if err != nil || status != http.StatusOK || !res.Accepted {
		t.Fatalf("quote: status %d, err %v, result %+v", status, err, res)
	}

	t.Log("Step 3: Closing quote collection...")
	if _, err = c.RequestJSON(ctx, http.MethodPost, eventsPath, map[string]any{"event": "EVALUATION_DONE"}, &res); err != nil || !res.Accepted {
		t.Fatalf("evaluation done: err %v, result %+v", err, res)
	}

	t.Log("Step 4: Scoring the quote...")
	var scored struct {
		Ranked []struct {
			Rank int `json:"rank"`
		} `json:"ranked"`
	}
	status, err = c.RequestJSON(ctx, http.MethodPost, "/v1/deals/"+deal.DealID+"/score", map[string]any{
		"offers": []map[string]any{
			{"offer_id": "q_int_1", "unit_price": "8.50", "quantity": 100, "delivery_days": 7, "warranty_months": 12},
		},
	}, &scored)
	if err != nil || status != http.StatusOK || len(scored.Ranked) != 1 {
		t.Fatalf("score: status %d, err %v, ranked %+v", status, err, scored.Ranked)
	}

	t.Log("Step 5: Accepting the quote...")
	if _, err = c.RequestJSON(ctx, http.MethodPost, eventsPath, map[string]any{
		"event": "OFFER_ACCEPTED",
		"message": envelope("acceptance", deal.DealID, "buyer_int", map[string]any{
			"accepted_offer_id": "q_int_1",
		}),
	}, &res); err != nil || !res.Accepted || res.NewState != "AGREED" {
		t.Fatalf("acceptance: err %v, result %+v", err, res)
	}

	t.Log("Step 6: Finalizing and archiving...")
	if _, err = c.RequestJSON(ctx, http.MethodPost, eventsPath, map[string]any{"event": "FINALIZE"}, &res); err != nil || !res.Accepted {
		t.Fatalf("finalize: err %v, result %+v", err, res)
	}
	if _, err = c.RequestJSON(ctx, http.MethodPost, eventsPath, map[string]any{"event": "ARCHIVE"}, &res); err != nil || !res.Accepted || res.NewState != "ARCHIVED" {
		t.Fatalf("archive: err %v, result %+v", err, res)
	}

	t.Log("Step 7: Reading archived deal...")
	var final dealSummary
	status, err = c.RequestJSON(ctx, http.MethodGet, "/v1/deals/"+deal.DealID, nil, &final)
	if err != nil || status != http.StatusOK || final.Status != "ARCHIVED" {
		t.Fatalf("get archived deal: status %d, err %v, summary %+v", status, err, final)
	}
}

// TestIllegalEventRejected verifies a protocol violation is reported without
// moving the deal.
func TestIllegalEventRejected(t *testing.T) {
	c := getTestClient()
	skipIfNoService(t, c)
	ctx := context.Background()

	var deal dealSummary
	status, err := c.RequestJSON(ctx, http.MethodPost, "/v1/deals", map[string]any{
		"message": envelope("rfq", "", "buyer_int2", map[string]any{
			"rfq_id": "rfq_int_2", "buyer_id": "buyer_int2", "description": "more parts",
			"quantity": 10, "max_unit_price": "5.00",
		}),
	}, &deal)
	if err != nil || status != http.StatusCreated {
		t.Fatalf("create deal: status %d, err %v", status, err)
	}

	// acceptance straight from RFQ_OPEN is illegal
	var res submitResult
	status, err = c.RequestJSON(ctx, http.MethodPost, "/v1/deals/"+deal.DealID+"/events", map[string]any{
		"event": "OFFER_ACCEPTED",
		"message": envelope("acceptance", deal.DealID, "buyer_int2", map[string]any{
			"accepted_offer_id": "nothing",
		}),
	}, &res)
	if err != nil || status != http.StatusOK {
		t.Fatalf("submit: status %d, err %v", status, err)
	}
	if res.Accepted || len(res.Errors) == 0 {
		t.Fatalf("illegal event not rejected: %+v", res)
	}

	var after dealSummary
	if _, err := c.RequestJSON(ctx, http.MethodGet, "/v1/deals/"+deal.DealID, nil, &after); err != nil {
		t.Fatal(err)
	}
	if after.Status != "RFQ_OPEN" {
		t.Errorf("status = %s, want unchanged RFQ_OPEN", after.Status)
	}
}
