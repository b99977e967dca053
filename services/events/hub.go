package eventsvc

import (
	"context"
	"fmt"
	"sync"

	"github.com/trezcool/somo/core"
)

// AllEvents subscribes a handler to every event type.
const AllEvents = "*"

// LocalHub fans events out to in-process subscribers.
// Handlers run synchronously in subscription order; a panicking handler is logged and skipped.
type LocalHub struct {
	mu       sync.RWMutex
	handlers map[string][]core.EventHandler // {event type: handlers}
	logger   core.Logger
}

var _ core.EventPublisher = (*LocalHub)(nil)

func NewLocalHub(logger core.Logger) *LocalHub {
	return &LocalHub{
		handlers: make(map[string][]core.EventHandler),
		logger:   logger,
	}
}

// Subscribe registers h for events of type typ, or for all of them with AllEvents.
func (h *LocalHub) Subscribe(typ string, handler core.EventHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[typ] = append(h.handlers[typ], handler)
}

func (h *LocalHub) Publish(ctx context.Context, evt core.Event) error {
	h.mu.RLock()
	handlers := make([]core.EventHandler, 0, len(h.handlers[evt.Type])+len(h.handlers[AllEvents]))
	handlers = append(handlers, h.handlers[evt.Type]...)
	handlers = append(handlers, h.handlers[AllEvents]...)
	h.mu.RUnlock()

	for _, handler := range handlers {
		h.dispatch(ctx, handler, evt)
	}
	return nil
}

func (h *LocalHub) dispatch(ctx context.Context, handler core.EventHandler, evt core.Event) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error(fmt.Sprintf("event handler panicked: %v", r), map[string]interface{}{"event": evt.Type})
		}
	}()
	handler(ctx, evt)
}
