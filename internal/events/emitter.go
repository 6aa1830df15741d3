package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

type registration struct {
	handler EventHandler
	types   map[ActivityType]struct{}
}

func (r registration) accepts(t ActivityType) bool {
	if len(r.types) == 0 {
		return true
	}
	_, ok := r.types[t]
	return ok
}

// InMemoryEventEmitter dispatches events synchronously to handlers
// registered in this process.
type InMemoryEventEmitter struct {
	mu            sync.RWMutex
	registrations []registration
	logger        *slog.Logger
}

// NewInMemoryEventEmitter creates a new instance of InMemoryEventEmitter.
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryEventEmitter{
		logger: logger.With("component", "event_emitter"),
	}
}

// RegisterHandler subscribes handler to events of the given types, or to
// every event when no types are given.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler, types ...ActivityType) {
	reg := registration{handler: handler}
	if len(types) > 0 {
		reg.types = make(map[ActivityType]struct{}, len(types))
		for _, t := range types {
			reg.types[t] = struct{}{}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.registrations = append(e.registrations, reg)
	e.logger.Debug("registered event handler", "handler_count", len(e.registrations))
}

// EmitEvent delivers event to every matching handler. A failing handler
// does not stop delivery to the others; all handler errors are returned
// joined.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *ActivityEvent) error {
	if event == nil {
		return errors.New("nil event")
	}
	if !event.Type.IsValid() {
		return fmt.Errorf("unsupported activity type %q", event.Type)
	}

	e.mu.RLock()
	regs := make([]registration, len(e.registrations))
	copy(regs, e.registrations)
	e.mu.RUnlock()

	log := e.logger.With(
		"event_id", event.ID,
		"event_type", event.Type,
		"task_id", event.TaskID)

	var errs []error
	delivered := 0
	for i, reg := range regs {
		if !reg.accepts(event.Type) {
			continue
		}
		delivered++
		if err := reg.handler.HandleEvent(ctx, event); err != nil {
			log.Error("handler failed to process event",
				"error", err,
				"handler_index", i)
			errs = append(errs, err)
		}
	}

	if delivered == 0 {
		log.Warn("no handlers registered for event")
	}
	return errors.Join(errs...)
}
