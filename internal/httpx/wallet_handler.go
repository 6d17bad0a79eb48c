package httpx

import (
	"context"
	"encoding/json"
	"github.com/go-chi/chi/v5"
	"github.com/metalaloud/settlement/internal/ledger"
	"github.com/metalaloud/settlement/internal/wallet"
	"github.com/shopspring/decimal"
	"net/http"
	"time"
)

type WalletHandler struct {
	Service *wallet.Service
}

type RecordSaleReq struct {
	Amount     decimal.Decimal `json:"amount"`
	Commission decimal.Decimal `json:"commission"`
}

type WithdrawalReq struct {
	Amount      decimal.Decimal    `json:"amount"`
	BankDetails ledger.BankDetails `json:"bank_details"`
}

type SettleWithdrawalReq struct {
	Status ledger.TxStatus `json:"status"`
}

func (h *WalletHandler) Register(r chi.Router) {
	r.Route("/wallets/{userID}", func(r chi.Router) {
		r.Use(RequireOwner("userID"))
		r.Get("/balance", h.balance)
		r.Get("/transactions", h.transactions)
		r.Get("/summary", h.summary)
		r.Post("/withdrawals", h.requestWithdrawal)
		r.With(RequireRole(RoleAdmin)).Post("/sales", h.recordSale)
	})
	r.With(RequireRole(RoleAdmin)).Post("/withdrawals/{id}/settle", h.settleWithdrawal)
}

func (h *WalletHandler) balance(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	userID := chi.URLParam(r, "userID")
	bal, err := h.Service.Balance(ctx, userID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "balance": bal})
}

func (h *WalletHandler) transactions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	txs, err := h.Service.Transactions(ctx, chi.URLParam(r, "userID"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (h *WalletHandler) summary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	s, err := h.Service.Summary(ctx, chi.URLParam(r, "userID"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *WalletHandler) recordSale(w http.ResponseWriter, r *http.Request) {
	var req RecordSaleReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	wt, err := h.Service.RecordSale(ctx, chi.URLParam(r, "userID"), req.Amount, req.Commission)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, wt)
}

func (h *WalletHandler) requestWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req WithdrawalReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	wt, err := h.Service.RequestWithdrawal(ctx, chi.URLParam(r, "userID"), req.Amount, req.BankDetails)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, wt)
}

func (h *WalletHandler) settleWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req SettleWithdrawalReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Status != ledger.TxCompleted && req.Status != ledger.TxFailed {
		writeError(w, http.StatusUnprocessableEntity, "status must be completed or failed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	wt, err := h.Service.SettleWithdrawal(ctx, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wt)
}
