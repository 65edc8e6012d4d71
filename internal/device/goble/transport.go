package goble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/srg/stanmore2/internal/device"
)

// DefaultConnectTimeout bounds the dial plus profile discovery phase.
const DefaultConnectTimeout = 60 * time.Second

// Options configures a Transport.
type Options struct {
	// Address is the BLE MAC address (or Darwin device UUID) of the speaker.
	Address string

	// ConnectTimeout bounds Connect. Zero means the default.
	ConnectTimeout time.Duration
}

// Transport is the go-ble backed implementation of device.Transport.
//
// Characteristic access is serialized with a single write mutex; BLE allows
// at most one outstanding GATT request per connection.
type Transport struct {
	opts   Options
	logger *logrus.Logger

	connMu    sync.RWMutex
	client    ble.Client
	chars     map[string]*ble.Characteristic
	connected bool
	closing   bool

	writeMu sync.Mutex

	onDisconnect func()
}

// NewTransport creates a transport for the device at opts.Address.
func NewTransport(opts Options, logger *logrus.Logger) *Transport {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	return &Transport{
		opts:   opts,
		logger: logger,
		chars:  make(map[string]*ble.Characteristic),
	}
}

// Connect dials the device and discovers its full GATT profile.
func (t *Transport) Connect(ctx context.Context) error {
	t.connMu.Lock()
	defer t.connMu.Unlock()

	if strings.TrimSpace(t.opts.Address) == "" {
		return fmt.Errorf("device address is empty")
	}
	if t.connected {
		return device.ErrAlreadyConnected
	}

	t.logger.WithFields(logrus.Fields{
		"address": t.opts.Address,
		"timeout": t.opts.ConnectTimeout,
	}).Info("Connecting to BLE device...")

	dev, err := DeviceFactory()
	if err != nil {
		return fmt.Errorf("failed to create BLE device: %w", err)
	}
	ble.SetDefaultDevice(dev)

	connCtx, cancel := context.WithTimeout(ctx, t.opts.ConnectTimeout)
	defer cancel()

	client, err := ble.Dial(connCtx, ble.NewAddr(t.opts.Address))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: connecting to %q after %v", device.ErrTimeout, t.opts.Address, t.opts.ConnectTimeout)
		}
		return fmt.Errorf("failed to connect to device with address %q: %w", t.opts.Address, err)
	}

	t.logger.WithField("address", t.opts.Address).Debug("Discovering services and characteristics...")
	profile, err := client.DiscoverProfile(true)
	if err != nil {
		if cancelErr := client.CancelConnection(); cancelErr != nil {
			t.logger.WithField("error", cancelErr).Warn("Failed to cancel connection during discovery failure")
		}
		return fmt.Errorf("failed to discover profile: %w", err)
	}

	chars := make(map[string]*ble.Characteristic)
	for _, svc := range profile.Services {
		for _, char := range svc.Characteristics {
			uuid := device.NormalizeUUID(char.UUID.String())
			t.logger.WithField("characteristic", uuid).Debug("Found characteristic")
			chars[uuid] = char
		}
	}

	t.client = client
	t.chars = chars
	t.connected = true
	t.closing = false

	t.watchDisconnect(client)

	t.logger.WithFields(logrus.Fields{
		"address":         t.opts.Address,
		"characteristics": len(chars),
	}).Info("BLE device connected")
	return nil
}

// watchDisconnect monitors the client's Disconnected channel where the
// platform implementation provides one.
func (t *Transport) watchDisconnect(client ble.Client) {
	watcher, ok := any(client).(interface{ Disconnected() <-chan struct{} })
	if !ok {
		t.logger.Debug("Client does not expose a Disconnected() channel")
		return
	}

	go func() {
		<-watcher.Disconnected()

		t.connMu.Lock()
		wasClosing := t.closing
		t.connected = false
		t.client = nil
		handler := t.onDisconnect
		t.connMu.Unlock()

		if wasClosing {
			return
		}
		t.logger.Warn("BLE connection lost")
		if handler != nil {
			handler()
		}
	}()
}

// Disconnect closes the connection. A deliberate disconnect does not fire
// the disconnect handler.
func (t *Transport) Disconnect() error {
	t.connMu.Lock()
	if !t.connected || t.client == nil {
		t.connMu.Unlock()
		return nil
	}
	client := t.client
	t.closing = true
	t.connected = false
	t.client = nil
	t.connMu.Unlock()

	err := client.CancelConnection()
	if err != nil {
		t.logger.WithField("error", err).Warn("BLE device disconnected with errors")
		return err
	}
	t.logger.Info("BLE device disconnected")
	return nil
}

// IsConnected reports whether the link is up.
func (t *Transport) IsConnected() bool {
	t.connMu.RLock()
	defer t.connMu.RUnlock()
	return t.connected && t.client != nil
}

// Read reads the current value of a characteristic.
func (t *Transport) Read(ctx context.Context, characteristic string) ([]byte, error) {
	client, char, err := t.lookup(characteristic)
	if err != nil {
		return nil, err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	data, err := client.ReadCharacteristic(char)
	if err != nil {
		return nil, fmt.Errorf("failed to read characteristic %s: %w", characteristic, err)
	}
	return data, nil
}

// Write writes data to a characteristic. withResponse selects an
// acknowledged GATT write over write-without-response.
func (t *Transport) Write(ctx context.Context, characteristic string, data []byte, withResponse bool) error {
	client, char, err := t.lookup(characteristic)
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := client.WriteCharacteristic(char, data, !withResponse); err != nil {
		return fmt.Errorf("failed to write characteristic %s: %w", characteristic, err)
	}
	return nil
}

// Subscribe enables notifications on a characteristic and routes incoming
// values to handler. Handlers run on the go-ble notification goroutine.
func (t *Transport) Subscribe(characteristic string, handler device.NotificationHandler) error {
	client, char, err := t.lookup(characteristic)
	if err != nil {
		return err
	}

	if err := client.Subscribe(char, false, func(data []byte) {
		handler(data)
	}); err != nil {
		return fmt.Errorf("failed to subscribe to characteristic %s: %w", characteristic, err)
	}
	return nil
}

// Unsubscribe disables notifications on a characteristic.
func (t *Transport) Unsubscribe(characteristic string) error {
	client, char, err := t.lookup(characteristic)
	if err != nil {
		return err
	}

	if err := client.Unsubscribe(char, false); err != nil {
		return fmt.Errorf("failed to unsubscribe from characteristic %s: %w", characteristic, err)
	}
	return nil
}

// SetDisconnectHandler registers the callback fired on an unsolicited
// connection loss.
func (t *Transport) SetDisconnectHandler(handler func()) {
	t.connMu.Lock()
	defer t.connMu.Unlock()
	t.onDisconnect = handler
}

// lookup resolves a characteristic by UUID on the live connection.
func (t *Transport) lookup(characteristic string) (ble.Client, *ble.Characteristic, error) {
	t.connMu.RLock()
	defer t.connMu.RUnlock()

	if !t.connected || t.client == nil {
		return nil, nil, device.ErrNotConnected
	}

	char, ok := t.chars[device.NormalizeUUID(characteristic)]
	if !ok {
		return nil, nil, &device.NotFoundError{Resource: "characteristic", UUID: characteristic}
	}
	return t.client, char, nil
}
