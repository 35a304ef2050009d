// Package hooks is the engine's synchronous observability surface: named
// events fan out, in registration order, to subscriber callbacks on the
// caller's goroutine. A panicking or error-returning callback is recovered,
// logged, and never stops later callbacks or the run itself.
package hooks

import (
	"context"
	"fmt"
	"sync"

	"github.com/relayforge/flowengine/internal/infrastructure/logger"
)

// Standard event names the executor fires. Hosts may register for
// additional, engine-specific events beyond these four.
const (
	EventWorkflowExecuteBefore = "workflowExecuteBefore"
	EventWorkflowExecuteAfter  = "workflowExecuteAfter"
	EventNodeExecuteBefore     = "nodeExecuteBefore"
	EventNodeExecuteAfter      = "nodeExecuteAfter"
)

// Callback receives a typed payload (one of the structs in events.go) for the
// event it was registered against.
type Callback func(ctx context.Context, payload interface{}) error

// Manager is a name -> ordered subscriber list registry with per-callback
// failure isolation.
type Manager struct {
	mu          sync.RWMutex
	subscribers map[string][]subscriber
	nextID      int
	logger      *logger.Logger
}

type subscriber struct {
	id int
	cb Callback
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithLogger sets the logger used to report recovered panics and callback
// errors.
func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager builds an empty hook manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		subscribers: make(map[string][]subscriber),
		logger:      logger.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register subscribes cb to event and returns a handle for Unregister.
// Subscribers for the same event fire in the order they were registered.
func (m *Manager) Register(event string, cb Callback) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	m.subscribers[event] = append(m.subscribers[event], subscriber{id: id, cb: cb})
	return id
}

// Unregister removes the subscriber returned by Register for event.
func (m *Manager) Unregister(event string, id int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	subs := m.subscribers[event]
	for i, sub := range subs {
		if sub.id == id {
			m.subscribers[event] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Run fires every subscriber registered for event, in order, synchronously
// on the caller's goroutine. A panicking or error-returning subscriber is
// recovered and logged at warning level; it never stops the remaining
// subscribers or propagates back to the caller.
func (m *Manager) Run(ctx context.Context, event string, payload interface{}) {
	m.mu.RLock()
	subs := make([]subscriber, len(m.subscribers[event]))
	copy(subs, m.subscribers[event])
	m.mu.RUnlock()

	for _, sub := range subs {
		m.runOne(ctx, event, sub.cb, payload)
	}
}

func (m *Manager) runOne(ctx context.Context, event string, cb Callback, payload interface{}) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.WarnContext(ctx, "hook callback panicked",
				"event", event,
				"panic", fmt.Sprint(r),
			)
		}
	}()

	if err := cb(ctx, payload); err != nil {
		m.logger.WarnContext(ctx, "hook callback failed",
			"event", event,
			"error", err,
		)
	}
}
