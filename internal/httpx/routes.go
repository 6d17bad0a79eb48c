package httpx

import (
	"github.com/go-chi/chi/v5"
)

// Mount registers the authenticated API on r.
func Mount(r chi.Router, secret []byte, ph *PaymentsHandler, wh *WalletHandler) {
	r.Group(func(r chi.Router) {
		r.Use(Auth(secret))
		ph.Register(r)
		wh.Register(r)
	})
}
