// Package policy is the pure decision core of the engine's per-node error
// handling: given a policy name and the current attempt state, it decides
// what the executor should do next. It never sleeps, retries, or mutates
// anything itself — that loop control lives in pkg/engine, keeping this
// package trivial to unit test exhaustively.
package policy

import (
	"fmt"
	"time"

	"github.com/relayforge/flowengine/pkg/models"
)

// Policy is one of the four recognized values of a node's "onError"
// parameter.
type Policy string

const (
	StopWorkflow   Policy = "stopWorkflow"
	ContinueOnFail Policy = "continueOnFail"
	RetryOnFail    Policy = "retryOnFail"
	ErrorOutput    Policy = "errorOutput"

	// DefaultPolicy is used when a node's parameters omit "onError".
	DefaultPolicy = StopWorkflow

	// DefaultErrorOutputIndex is the output port ErrorOutput targets when
	// the node's parameters omit "errorOutputIndex".
	DefaultErrorOutputIndex = 1
)

// Kind identifies which branch of Decision is populated.
type Kind int

const (
	// Retry means: sleep Delay (0 means no sleep), then re-invoke the node.
	Retry Kind = iota
	// Stop means: raise Err as a terminal workflow error.
	Stop
	// Continue means: return a successful NodeResult carrying FallbackItem
	// on port 0.
	Continue
	// RouteToErrorOutput means: return a successful NodeResult carrying
	// FallbackItem on port Slot, with all lower ports empty.
	RouteToErrorOutput
)

// Decision is the outcome of Decide. Only the fields relevant to Kind are
// meaningful.
type Decision struct {
	Kind         Kind
	Delay        time.Duration
	Err          error
	FallbackItem models.Item
	Slot         int
}

// Decide is the pure error-policy function: given the policy in effect, the
// 1-indexed attempt number that just failed, the configured retry budget,
// and the exception raised, it returns what the executor should do.
func Decide(p Policy, attempt, maxRetries int, retryDelay time.Duration, errorOutputIndex int, cause error) Decision {
	switch p {
	case ContinueOnFail:
		return Decision{Kind: Continue, FallbackItem: fallbackItem(cause)}

	case RetryOnFail:
		if attempt <= maxRetries {
			return Decision{Kind: Retry, Delay: retryDelay}
		}
		return Decision{Kind: Stop, Err: cause}

	case ErrorOutput:
		return Decision{Kind: RouteToErrorOutput, Slot: errorOutputIndex, FallbackItem: fallbackItem(cause)}

	case StopWorkflow:
		fallthrough
	default:
		return Decision{Kind: Stop, Err: cause}
	}
}

func fallbackItem(cause error) models.Item {
	return models.Item{
		"error":     cause.Error(),
		"errorType": fmt.Sprintf("%T", cause),
	}
}

// ParseParameters extracts onError/maxRetries/retryDelay/errorOutputIndex
// from a node's Parameters, applying spec defaults and the JSON-number
// (float64) coercion a decoded workflow document requires.
func ParseParameters(parameters map[string]interface{}) (p Policy, maxRetries int, retryDelay time.Duration, errorOutputIndex int) {
	p = DefaultPolicy
	if raw, ok := parameters["onError"].(string); ok {
		switch Policy(raw) {
		case StopWorkflow, ContinueOnFail, RetryOnFail, ErrorOutput:
			p = Policy(raw)
		}
	}

	maxRetries = intParam(parameters, "maxRetries", 0)
	if maxRetries < 0 {
		maxRetries = 0
	}

	retryDelay = durationSecondsParam(parameters, "retryDelay", 0)
	if retryDelay < 0 {
		retryDelay = 0
	}

	errorOutputIndex = intParam(parameters, "errorOutputIndex", DefaultErrorOutputIndex)
	if errorOutputIndex < 0 {
		errorOutputIndex = DefaultErrorOutputIndex
	}

	return p, maxRetries, retryDelay, errorOutputIndex
}

func intParam(parameters map[string]interface{}, key string, fallback int) int {
	val, ok := parameters[key]
	if !ok {
		return fallback
	}
	switch v := val.(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}

func durationSecondsParam(parameters map[string]interface{}, key string, fallback time.Duration) time.Duration {
	val, ok := parameters[key]
	if !ok {
		return fallback
	}
	switch v := val.(type) {
	case float64:
		return time.Duration(v * float64(time.Second))
	case int:
		return time.Duration(v) * time.Second
	default:
		return fallback
	}
}
