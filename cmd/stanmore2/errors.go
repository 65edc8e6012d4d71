package main

import (
	"errors"
	"fmt"

	"github.com/srg/stanmore2/internal/device"
	"github.com/srg/stanmore2/internal/mqtt"
)

// ErrConnectionLost indicates the speaker connection dropped while serving.
// Distinct from device.ErrNotConnected, which marks an operation attempted
// without a connection.
var ErrConnectionLost = errors.New("speaker connection lost")

// FormatUserError turns internal errors into operator-facing messages.
func FormatUserError(err error) string {
	switch {
	case errors.Is(err, ErrConnectionLost):
		return "speaker connection lost; check the speaker is powered on and in range"
	case errors.Is(err, device.ErrNotConnected):
		return "not connected to the speaker"
	case errors.Is(err, device.ErrTimeout):
		return "timed out connecting to the speaker; check the speaker is powered on and in range"
	case errors.Is(err, mqtt.ErrConnectionFailed):
		return fmt.Sprintf("could not reach the MQTT broker: %v", err)
	default:
		return err.Error()
	}
}
