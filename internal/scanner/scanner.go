package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cornelk/hashmap"
	blelib "github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/srg/stanmore2/internal/device/goble"
)

// ProgressCallback is called when the scan phase changes.
type ProgressCallback func(phase string)

// DeviceEventType marks if the device was newly discovered or updated.
type DeviceEventType int

const (
	EventNew DeviceEventType = iota
	EventUpdated
)

// DeviceInfo is a snapshot of an advertising device.
type DeviceInfo struct {
	Address  string
	Name     string
	RSSI     int
	LastSeen time.Time
}

type DeviceEvent struct {
	Type       DeviceEventType
	DeviceInfo DeviceInfo
}

// Scanner handles BLE device discovery.
type Scanner struct {
	devices *hashmap.Map[string, DeviceInfo]
	events  chan DeviceEvent
	logger  *logrus.Logger

	scanOptions *ScanOptions
}

// ScanOptions configures scanning behavior.
type ScanOptions struct {
	Duration        time.Duration
	DuplicateFilter bool
	AllowList       []string
	BlockList       []string
}

// DefaultScanOptions returns default scanning options.
func DefaultScanOptions() *ScanOptions {
	return &ScanOptions{
		Duration:        10 * time.Second,
		DuplicateFilter: true,
	}
}

// NewScanner creates a new BLE scanner.
func NewScanner(logger *logrus.Logger) (*Scanner, error) {
	if logger == nil {
		logger = logrus.New()
	}

	return &Scanner{
		events: make(chan DeviceEvent, 100),
		logger: logger,
	}, nil
}

// Scan performs BLE discovery with the provided options and returns the
// devices seen, keyed by address.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions, progressCallback ProgressCallback) (map[string]DeviceInfo, error) {
	s.devices = hashmap.New[string, DeviceInfo]()

	if opts == nil {
		opts = DefaultScanOptions()
	}
	if progressCallback == nil {
		progressCallback = func(string) {}
	}

	s.logger.WithField("duration", opts.Duration).Info("Starting BLE scan...")
	progressCallback("Scanning")

	dev, err := goble.DeviceFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", err)
	}
	blelib.SetDefaultDevice(dev)

	s.scanOptions = opts
	defer func() {
		s.scanOptions = nil
	}()

	scanCtx, cancel := context.WithTimeout(ctx, opts.Duration)
	defer cancel()

	err = dev.Scan(scanCtx, opts.DuplicateFilter, s.handleAdvertisement)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	s.logger.WithField("device_count", s.devices.Len()).Info("BLE scan completed")
	progressCallback("Processing results")

	devices := make(map[string]DeviceInfo, s.devices.Len())
	s.devices.Range(func(key string, value DeviceInfo) bool {
		devices[key] = value
		return true
	})

	return devices, nil
}

// handleAdvertisement updates an existing entry or records a new device.
func (s *Scanner) handleAdvertisement(adv blelib.Advertisement) {
	address := adv.Addr().String()

	info, existing := s.devices.Get(address)
	if !existing && !s.shouldIncludeDevice(adv, s.scanOptions) {
		return
	}

	if existing {
		// Advertisements without a name do not erase one seen earlier.
		if name := adv.LocalName(); name != "" {
			info.Name = name
		}
		info.RSSI = adv.RSSI()
		info.LastSeen = time.Now()
		s.devices.Set(address, info)
		s.emit(DeviceEvent{Type: EventUpdated, DeviceInfo: info})
		return
	}

	info = DeviceInfo{
		Address:  address,
		Name:     adv.LocalName(),
		RSSI:     adv.RSSI(),
		LastSeen: time.Now(),
	}
	s.devices.Set(address, info)

	s.logger.WithFields(logrus.Fields{
		"device":  info.Name,
		"address": info.Address,
		"rssi":    info.RSSI,
	}).Info("Discovered new device")
	s.emit(DeviceEvent{Type: EventNew, DeviceInfo: info})
}

// emit delivers an event without blocking the advertisement callback; the
// oldest queued event is dropped when the channel is full.
func (s *Scanner) emit(event DeviceEvent) {
	for {
		select {
		case s.events <- event:
			return
		default:
			select {
			case <-s.events:
			default:
			}
		}
	}
}

// shouldIncludeDevice applies the allow/block filters.
func (s *Scanner) shouldIncludeDevice(adv blelib.Advertisement, opts *ScanOptions) bool {
	addr := adv.Addr().String()

	for _, blocked := range opts.BlockList {
		if addr == blocked {
			return false
		}
	}

	if len(opts.AllowList) > 0 {
		allowed := false
		for _, a := range opts.AllowList {
			if addr == a {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	return true
}

// Events returns a read-only channel of device events.
func (s *Scanner) Events() <-chan DeviceEvent {
	return s.events
}
