package httpx

import (
	"context"
	"encoding/json"
	"github.com/go-chi/chi/v5"
	"github.com/metalaloud/settlement/internal/card"
	"github.com/metalaloud/settlement/internal/ledger"
	"github.com/metalaloud/settlement/internal/settlement"
	"github.com/shopspring/decimal"
	"net/http"
	"time"
)

type PaymentsHandler struct {
	Service *settlement.Service
}

type ProcessPaymentReq struct {
	Amount  decimal.Decimal `json:"amount"`
	Payment card.Details    `json:"payment"`
	Order   ledger.Order    `json:"order"`
}

func (h *PaymentsHandler) Register(r chi.Router) {
	r.Post("/payments", h.processPayment)
	r.Get("/payments/{id}", h.getPayment)
	r.Get("/artists/{id}/sales", h.artistSales)
}

func (h *PaymentsHandler) processPayment(w http.ResponseWriter, r *http.Request) {
	var req ProcessPaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, settlement.Result{Error: "invalid json"})
		return
	}
	if c, ok := ClaimsFrom(r.Context()); ok && (req.Order.UserID == "" || c.Role != RoleAdmin) {
		req.Order.UserID = c.Subject
	}

	// the simulated gateway delay runs inside the handler; leave room for it
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	res := h.Service.ProcessPayment(ctx, req.Amount, req.Payment, req.Order)
	switch {
	case res.Success:
		writeJSON(w, http.StatusOK, res)
	case ledger.IsBusiness(res.Err):
		writeJSON(w, http.StatusUnprocessableEntity, res)
	default:
		writeJSON(w, http.StatusInternalServerError, res)
	}
}

func (h *PaymentsHandler) getPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Service.Payment(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if c, ok := ClaimsFrom(r.Context()); ok && c.Role != RoleAdmin && c.Subject != p.UserID {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PaymentsHandler) artistSales(w http.ResponseWriter, r *http.Request) {
	artistID := chi.URLParam(r, "id")
	if c, ok := ClaimsFrom(r.Context()); ok && c.Role != RoleAdmin && c.Subject != artistID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	s, err := h.Service.ArtistSales(ctx, artistID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		ArtistID string `json:"artist_id"`
		ledger.ArtistSales
	}{artistID, s})
}
