package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Service enqueues typed messages for background processing.
type Service interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

// Config contains queue tuning parameters.
type Config struct {
	Workers    int
	RetryLimit int
	RetryDelay time.Duration
}

// Message represents a message in the queue.
type Message struct {
	ID        string
	Type      string
	Payload   interface{}
	Attempts  int
	Timestamp time.Time
}

// ParsePayload converts a queued payload back into its concrete type.
// Payloads arrive as map[string]interface{} or json.RawMessage after a
// round trip through Redis.
func ParsePayload[T any](payload interface{}) (*T, error) {
	var result T

	switch p := payload.(type) {
	case *T:
		return p, nil
	case T:
		return &p, nil
	case map[string]interface{}:
		jsonData, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("marshal map to json: %w", err)
		}
		if err := json.Unmarshal(jsonData, &result); err != nil {
			return nil, fmt.Errorf("unmarshal json to struct: %w", err)
		}
		return &result, nil
	case json.RawMessage:
		if err := json.Unmarshal(p, &result); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		return &result, nil
	default:
		return nil, fmt.Errorf("invalid payload type: %T", payload)
	}
}
