package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/srg/stanmore2/internal/device"
	"github.com/srg/stanmore2/internal/mqtt"
)

func TestFormatUserError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			"connection lost",
			ErrConnectionLost,
			"speaker connection lost; check the speaker is powered on and in range",
		},
		{
			"not connected",
			fmt.Errorf("failed to read characteristic: %w", device.ErrNotConnected),
			"not connected to the speaker",
		},
		{
			"connect timeout",
			fmt.Errorf("%w: connecting to \"aa:bb\" after 60s", device.ErrTimeout),
			"timed out connecting to the speaker; check the speaker is powered on and in range",
		},
		{
			"generic",
			errors.New("something else"),
			"something else",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatUserError(tt.err))
		})
	}

	brokerErr := fmt.Errorf("%w: dial tcp refused", mqtt.ErrConnectionFailed)
	assert.Contains(t, FormatUserError(brokerErr), "could not reach the MQTT broker")
}
