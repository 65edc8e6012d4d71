package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// NotFoundError represents an error when a BLE resource is not found
type NotFoundError struct {
	Resource string // "service", "characteristic"
	UUID     string
}

func (e *NotFoundError) Error() string {
	if e.UUID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %q not found", e.Resource, e.UUID)
}

// ConnectionState represents the specific kind of connection state failure
type ConnectionState string

const (
	NotConnected     ConnectionState = "not_connected"
	AlreadyConnected ConnectionState = "already_connected"
)

// ConnectionError represents any connection-related problem
type ConnectionError struct {
	State ConnectionState
	Msg   string
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.State)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Msg)
}

// Is allows errors.Is to compare ConnectionError values by State
func (e *ConnectionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ConnectionError)
	if !ok {
		return false
	}
	return e.State == t.State
}

// Predefined sentinel errors for connection states
var (
	ErrNotConnected     = &ConnectionError{State: NotConnected}
	ErrAlreadyConnected = &ConnectionError{State: AlreadyConnected}
)

// ErrTimeout is returned when a transport operation times out.
var ErrTimeout = errors.New("timeout")

// NotificationHandler receives the raw value of a characteristic
// notification. Handlers run on the transport's delivery goroutine and
// must copy the data if they retain it beyond the call.
type NotificationHandler func(data []byte)

// Transport is the wireless characteristic transport the speaker facade
// talks through. Characteristics are addressed by UUID; implementations
// normalize UUIDs internally, so callers may pass any dash/case form.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool

	Read(ctx context.Context, characteristic string) ([]byte, error)
	Write(ctx context.Context, characteristic string, data []byte, withResponse bool) error

	Subscribe(characteristic string, handler NotificationHandler) error
	Unsubscribe(characteristic string) error

	// SetDisconnectHandler registers a function invoked once when the link
	// drops. The handler runs on the transport's monitor goroutine.
	SetDisconnectHandler(fn func())
}

// NormalizeUUID converts a UUID string to the internal BLE library format
// (lowercase, no dashes). Handles both standard UUID format (with dashes)
// and already normalized format (without dashes).
func NormalizeUUID(uuid string) string {
	return strings.ToLower(strings.ReplaceAll(uuid, "-", ""))
}
