package scripting

import (
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/destiny/internal/game/event"
)

// Subscriber is the part of event.Bus the hooks need.
type Subscriber interface {
	SubscribeAll(h event.Handler) (unsubscribe func())
}

// HookName returns the Lua function called for events named n,
// e.g. on_timer_expired for TIMER_EXPIRED.
func HookName(n event.Name) string {
	return "on_" + strings.ToLower(string(n))
}

// EventHooks forwards bus events to Lua hook functions.
type EventHooks struct {
	mgr    *Manager
	logger *zap.Logger
}

// NewEventHooks creates EventHooks over mgr.
func NewEventHooks(mgr *Manager, logger *zap.Logger) *EventHooks {
	return &EventHooks{mgr: mgr, logger: logger}
}

// Attach subscribes to every event on bus. Each event calls its hook with one
// table argument holding id, name, timestamp and payload.
//
// Postcondition: Returns the function that detaches the hooks.
func (h *EventHooks) Attach(bus Subscriber) (detach func()) {
	return bus.SubscribeAll(h.Handle)
}

// Handle calls the hook for e if one is defined.
func (h *EventHooks) Handle(e event.Event) {
	hook := HookName(e.Name)
	if !h.mgr.HasHook(hook) {
		return
	}
	fields, err := e.Fields()
	if err != nil {
		h.logger.Warn("scripting: event not convertible", zap.String("event", string(e.Name)), zap.Error(err))
		return
	}
	h.mgr.CallHook(hook, fields)
}
