// Package extract turns free-text utterances into typed slot values.
// Strategies are tried in a fixed order per attempt: entities tagged by
// the upstream recognizer, slot-specific patterns, then an external
// text-understanding service over HTTP. The first strategy producing a
// value at or above the confidence floor wins.
package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/profiled/internal/profile"
)

// Strategy identifies which extraction technique produced a result.
type Strategy string

const (
	StrategyEntity  Strategy = "entity"
	StrategyPattern Strategy = "pattern"
	StrategyService Strategy = "service"
)

const (
	// defaultMinConfidence is the floor a strategy's result must meet.
	defaultMinConfidence = 0.6
	// skipConfidence is assigned when the user declines the slot.
	skipConfidence = 0.9
	// defaultServiceConfidence is used when the service reports none.
	defaultServiceConfidence = 0.5
)

// RecognizedEntity is one entity tagged by the upstream recognizer.
type RecognizedEntity struct {
	Entity     string  `json:"entity"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Result is a successful extraction. It is never persisted directly;
// callers fold it into an event's metadata.
type Result struct {
	Slot       string
	Value      profile.Value
	Strategy   Strategy
	Confidence float64
	Source     string // raw text the value was parsed from
}

// Failure reports that no strategy produced an acceptable value. It is
// an ordinary result the caller branches on, not an error: the safe
// response is to re-prompt the user.
type Failure struct {
	Slot   string
	Reason string
	// ServiceUnavailable is set when the external service was needed
	// but unreachable or timed out.
	ServiceUnavailable bool
}

func (f *Failure) String() string {
	return fmt.Sprintf("extraction failed for slot %s: %s", f.Slot, f.Reason)
}

// Resolver is the external text-understanding service. Requests are
// stateless; repeating one has no side effects.
type Resolver interface {
	Resolve(ctx context.Context, req ResolveRequest) (*ResolveReply, error)
}

// ResolveRequest is the JSON body sent to the service.
type ResolveRequest struct {
	Utterance       string `json:"utterance"`
	Slot            string `json:"slot"`
	SlotDescription string `json:"slot_description"`
	Model           string `json:"model,omitempty"`
}

// ResolveReply is the service's structured answer. Unparseable marks an
// utterance the service understood but could not extract a value from.
type ResolveReply struct {
	Value       string  `json:"value"`
	Confidence  float64 `json:"confidence,omitempty"`
	Unparseable bool    `json:"unparseable,omitempty"`
}

// Config holds extraction settings.
type Config struct {
	MinConfidence float64       `koanf:"min_confidence"`
	Service       ServiceConfig `koanf:"service"`
}

// ServiceConfig holds the external service connection settings. An
// empty URL disables the service strategy.
type ServiceConfig struct {
	URL        string        `koanf:"url"`
	Model      string        `koanf:"model"`
	Timeout    time.Duration `koanf:"timeout"`
	MaxRetries int           `koanf:"max_retries"`
	RateLimit  float64       `koanf:"rate_limit"` // requests per second
	Burst      int           `koanf:"burst"`
}

// DefaultConfig returns the standard extraction configuration.
func DefaultConfig() Config {
	return Config{
		MinConfidence: defaultMinConfidence,
		Service: ServiceConfig{
			Timeout:    5 * time.Second,
			MaxRetries: 1,
			RateLimit:  5,
			Burst:      10,
		},
	}
}
