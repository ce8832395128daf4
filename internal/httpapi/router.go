package httpapi

import (
	"net/http"

	"github.com/Ryz3nPlayZ/B2B-Procurement/internal/engine"
)

func NewRouter(eng *engine.Engine) http.Handler {
	h := NewHandlers(eng)
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/deals", h.HandleCreateDeal)
	mux.HandleFunc("GET /v1/deals/{deal_id}", h.HandleGetDeal)
	mux.HandleFunc("POST /v1/deals/{deal_id}/events", h.HandleSubmitEvent)
	mux.HandleFunc("POST /v1/deals/{deal_id}/score", h.HandleScoreOffers)
	mux.HandleFunc("GET /v1/deals/{deal_id}/verify", h.HandleVerifyHistory)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return mux
}
