package kafka

import (
	"encoding/json"
	"fmt"
	"github.com/metalaloud/settlement/internal/ledger"
	"github.com/segmentio/kafka-go"
)

// DecodeEnvelope reads a v1 envelope from a message value.
func DecodeEnvelope(m kafka.Message) (ledger.Envelope, error) {
	var env ledger.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	if env.EventVersion != 1 {
		return env, fmt.Errorf("unsupported event version %d", env.EventVersion)
	}
	return env, nil
}

// UnwrapPayload decodes an envelope payload into T.
func UnwrapPayload[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}
