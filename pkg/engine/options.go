// Package engine is the executor / scheduler: the central state machine
// that owns the work stack, the waiting-data buffers, the input-requirement
// table, start-node selection, sub-graph pruning, per-node retry, and final
// result assembly.
package engine

import (
	"github.com/relayforge/flowengine/internal/config"
	"github.com/relayforge/flowengine/internal/infrastructure/logger"
	"github.com/relayforge/flowengine/pkg/hooks"
)

// Option configures an Executor at construction time.
type Option func(*Executor)

// WithMode sets the run mode passed to every node's execution context.
// Only "manual" carries engine-level meaning (trigger behavior); all other
// values are opaque and passed through.
func WithMode(mode string) Option {
	return func(e *Executor) { e.mode = mode }
}

// WithGlobalConfig sets the shared-read config bag handed to every node.
func WithGlobalConfig(cfg map[string]interface{}) Option {
	return func(e *Executor) { e.globalConfig = cfg }
}

// WithHooks attaches a hook manager so the executor fires the four standard
// lifecycle events. A nil or omitted manager means hooks are not fired.
func WithHooks(m *hooks.Manager) Option {
	return func(e *Executor) { e.hooks = m }
}

// WithLogger sets the logger used for structural and cancellation
// diagnostics.
func WithLogger(l *logger.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithEngineConfig sets the default retry/timeout/depth parameters applied
// when a node's own parameters, or the call site, omit them.
func WithEngineConfig(cfg config.EngineConfig) Option {
	return func(e *Executor) { e.cfg = cfg }
}

// withDepth tracks sub-workflow recursion depth. Internal: hosts never
// construct nested executors directly, the sub-workflow NodeType does.
func withDepth(depth int) Option {
	return func(e *Executor) { e.depth = depth }
}
