package stanmore

import "errors"

// Domain-specific errors for speaker operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidVolume is returned when a volume is outside [0, 32].
	ErrInvalidVolume = errors.New("stanmore: volume must be within 0 and 32")

	// ErrInvalidLedBrightness is returned when an LED brightness is outside [0, 35].
	ErrInvalidLedBrightness = errors.New("stanmore: led brightness must be within 0 and 35")

	// ErrInvalidDeviceName is returned when a device name does not UTF-8 encode
	// to between 1 and 17 bytes.
	ErrInvalidDeviceName = errors.New("stanmore: device name must encode to 1-17 bytes")

	// ErrInvalidEqualizerValue is returned when an equalizer band gain is
	// outside [0, 10].
	ErrInvalidEqualizerValue = errors.New("stanmore: equalizer value out of range")

	// ErrUnknownCallbackID is returned when cancelling a callback ID that is
	// not registered.
	ErrUnknownCallbackID = errors.New("stanmore: unknown callback id")

	// ErrProtocolDecode is returned when bytes read from the device do not
	// match the expected layout (unknown status code, short read, ...).
	ErrProtocolDecode = errors.New("stanmore: protocol decode failed")
)
