package stanmore

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// CallbackRegistry is an ordered id-to-handler store for one event kind.
// IDs are issued as newest-live-entry + 1, starting at 1. Handlers are
// dispatched in insertion order.
//
// Registries are safe for concurrent use: the BLE transport and the bus
// router deliver on independent goroutines.
type CallbackRegistry[T any] struct {
	mu      sync.Mutex
	entries *orderedmap.OrderedMap[int, T]
	logger  *logrus.Logger
}

// NewCallbackRegistry creates an empty registry.
func NewCallbackRegistry[T any](logger *logrus.Logger) *CallbackRegistry[T] {
	if logger == nil {
		logger = logrus.New()
	}
	return &CallbackRegistry[T]{
		entries: orderedmap.New[int, T](),
		logger:  logger,
	}
}

// Register stores a handler and returns its cancellation ID.
func (r *CallbackRegistry[T]) Register(callback T) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := 1
	if newest := r.entries.Newest(); newest != nil {
		id = newest.Key + 1
	}
	r.entries.Set(id, callback)
	return id
}

// Cancel removes a previously registered handler.
func (r *CallbackRegistry[T]) Cancel(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, present := r.entries.Delete(id); !present {
		return fmt.Errorf("%w: %d", ErrUnknownCallbackID, id)
	}
	return nil
}

// Len reports the number of registered handlers.
func (r *CallbackRegistry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries.Len()
}

// Dispatch invokes every registered handler in insertion order. A panicking
// handler is recovered and logged so the remaining handlers still run.
func (r *CallbackRegistry[T]) Dispatch(invoke func(T)) {
	r.mu.Lock()
	callbacks := make([]T, 0, r.entries.Len())
	for pair := r.entries.Oldest(); pair != nil; pair = pair.Next() {
		callbacks = append(callbacks, pair.Value)
	}
	r.mu.Unlock()

	for _, callback := range callbacks {
		r.safeInvoke(invoke, callback)
	}
}

func (r *CallbackRegistry[T]) safeInvoke(invoke func(T), callback T) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.WithField("panic", rec).Error("Callback panicked during dispatch")
		}
	}()
	invoke(callback)
}
