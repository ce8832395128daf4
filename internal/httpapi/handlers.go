package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Ryz3nPlayZ/B2B-Procurement/internal/engine"
	"github.com/Ryz3nPlayZ/B2B-Procurement/internal/model"
)

type Handlers struct {
	eng *engine.Engine
}

func NewHandlers(eng *engine.Engine) *Handlers {
	return &Handlers{eng: eng}
}

// HandleCreateDeal handles POST /v1/deals
func (h *Handlers) HandleCreateDeal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Message model.Envelope           `json:"message"`
		Policy  *model.NegotiationPolicy `json:"policy,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	summary, err := h.eng.CreateDeal(ctx, req.Message, req.Policy)
	if err != nil {
		writeEngineError(ctx, w, err, "failed to create deal")
		return
	}
	writeJSON(w, http.StatusCreated, summary)
}

// HandleSubmitEvent handles POST /v1/deals/{deal_id}/events
func (h *Handlers) HandleSubmitEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dealID := r.PathValue("deal_id")
	if dealID == "" {
		http.Error(w, "deal_id is required", http.StatusBadRequest)
		return
	}

	var req struct {
		Event   model.Event     `json:"event"`
		Message *model.Envelope `json:"message,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Event == "" {
		http.Error(w, "event is required", http.StatusBadRequest)
		return
	}

	result, err := h.eng.Submit(ctx, dealID, req.Event, req.Message)
	if err != nil {
		switch {
		case engine.IsKind(err, engine.KindNotFound):
			http.Error(w, "deal not found", http.StatusNotFound)
			return
		case engine.IsKind(err, engine.KindPersistence):
			slog.ErrorContext(ctx, "submit persistence failure", "deal_id", dealID, "error", err)
			http.Error(w, "failed to persist transition", http.StatusInternalServerError)
			return
		}
		// Domain rejections (validation, state, round limit) were processed:
		// the result carries accepted=false plus the violation details, and a
		// forced transition may already have moved the deal.
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleGetDeal handles GET /v1/deals/{deal_id}
func (h *Handlers) HandleGetDeal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dealID := r.PathValue("deal_id")
	if dealID == "" {
		http.Error(w, "deal_id is required", http.StatusBadRequest)
		return
	}

	summary, err := h.eng.GetState(ctx, dealID)
	if err != nil {
		writeEngineError(ctx, w, err, "failed to get deal")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HandleScoreOffers handles POST /v1/deals/{deal_id}/score
func (h *Handlers) HandleScoreOffers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dealID := r.PathValue("deal_id")
	if dealID == "" {
		http.Error(w, "deal_id is required", http.StatusBadRequest)
		return
	}

	var req struct {
		Offers []model.Offer `json:"offers"`
	}
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ranked, err := h.eng.ScoreOffers(ctx, dealID, req.Offers)
	if err != nil {
		writeEngineError(ctx, w, err, "failed to score offers")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deal_id": dealID, "ranked": ranked})
}

// HandleVerifyHistory handles GET /v1/deals/{deal_id}/verify
func (h *Handlers) HandleVerifyHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dealID := r.PathValue("deal_id")
	if dealID == "" {
		http.Error(w, "deal_id is required", http.StatusBadRequest)
		return
	}

	if err := h.eng.VerifyHistory(ctx, dealID); err != nil {
		if engine.IsKind(err, engine.KindNotFound) {
			http.Error(w, "deal not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusConflict, map[string]any{"deal_id": dealID, "intact": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deal_id": dealID, "intact": true})
}

func writeEngineError(ctx context.Context, w http.ResponseWriter, err error, logMsg string) {
	var engErr *engine.Error
	if errors.As(err, &engErr) {
		switch engErr.Kind {
		case engine.KindNotFound:
			http.Error(w, "deal not found", http.StatusNotFound)
		case engine.KindValidation:
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": engErr.Invariant, "details": engErr.Messages()})
		case engine.KindState, engine.KindRoundLimit:
			writeJSON(w, http.StatusConflict, map[string]any{"error": engErr.Invariant, "details": engErr.Messages()})
		default:
			slog.ErrorContext(ctx, logMsg, "error", err)
			http.Error(w, logMsg, http.StatusInternalServerError)
		}
		return
	}
	slog.ErrorContext(ctx, logMsg, "error", err)
	http.Error(w, logMsg, http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB limit
	if err != nil {
		return err
	}
	defer r.Body.Close()
	return json.Unmarshal(body, v)
}
