package redisx

import "time"

const (
	// Idempotency of payments: idem:payment:{order_id} -> payment_id
	KeyIdemPayment = "idem:payment:%s"

	// Finished event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLDedup       = 48 * time.Hour
)
