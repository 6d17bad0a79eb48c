package httpx

import (
	"encoding/json"
	"errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/metalaloud/settlement/internal/ledger"
	"log"
	"net/http"
	"time"
)

func NewRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// statusFor maps domain errors to HTTP. Unexpected errors get a generic
// message; their detail only goes to the log.
func statusFor(err error) (int, string) {
	var ve *ledger.ValidationError
	var fe *ledger.InsufficientFundsError
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity, ve.Message
	case errors.As(err, &fe):
		return http.StatusConflict, fe.Error()
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, ledger.ErrInvalidTransition):
		return http.StatusConflict, ledger.ErrInvalidTransition.Error()
	}
	return http.StatusInternalServerError, "processing failed"
}

func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusFor(err)
	if code == http.StatusInternalServerError {
		log.Printf("%s %s [%s]: %v", r.Method, r.URL.Path, middleware.GetReqID(r.Context()), err)
	}
	writeError(w, code, msg)
}
