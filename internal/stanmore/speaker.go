package stanmore

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/srg/stanmore2/internal/device"
)

// The speaker's GATT characteristic UUIDs, verbatim from the device.
// The transport normalizes them, so the grouping of the dashes is cosmetic.
const (
	CharVolume        = "44fa-50b2-d0a3-472e-a939-d80c-f176-38bb"
	CharControl       = "4446-cf5f-12f2-4c1e-afe1-b157-9753-5ba8"
	CharLedBrightness = "35e3-b090-1d43-35ae-af35-d254-b153-fc36"
	CharDeviceName    = "3ba9-1c2e-8b08-4c27-9d4e-4936-a793-fcfb"
	CharEqualizer     = "31fb-b033-1013-bd3e-a249-d856-f156-a319"
	CharPairing       = "4a75-c20f-13bd-44a1-b39d-a70f-86f6-07a2"
	CharMediaInfo     = "95c0-9f26-95a4-4597-a798-b8e4-08f5-ca66"
)

// Speaker is the operation surface of a Marshall Stanmore II. It validates
// inputs, encodes and decodes the device's binary layouts, and dispatches
// decoded notifications to the per-event callback registries.
//
// All device I/O goes through the injected Transport; the transport
// serializes characteristic access, so the facade adds no mutex of its own
// around reads and writes.
type Speaker struct {
	transport device.Transport
	logger    *logrus.Logger

	disconnectCallbacks *CallbackRegistry[DisconnectCallback]
	statusCallbacks     *CallbackRegistry[StatusCallback]
	volumeCallbacks     *CallbackRegistry[VolumeCallback]
	mediaInfoCallbacks  *CallbackRegistry[MediaInfoCallback]
	equalizerCallbacks  *CallbackRegistry[EqualizerCallback]

	assemblerMu sync.Mutex
	assembler   mediaAssembler
}

// NewSpeaker creates a speaker facade over the given transport.
func NewSpeaker(transport device.Transport, logger *logrus.Logger) *Speaker {
	if logger == nil {
		logger = logrus.New()
	}

	s := &Speaker{
		transport:           transport,
		logger:              logger,
		disconnectCallbacks: NewCallbackRegistry[DisconnectCallback](logger),
		statusCallbacks:     NewCallbackRegistry[StatusCallback](logger),
		volumeCallbacks:     NewCallbackRegistry[VolumeCallback](logger),
		mediaInfoCallbacks:  NewCallbackRegistry[MediaInfoCallback](logger),
		equalizerCallbacks:  NewCallbackRegistry[EqualizerCallback](logger),
	}
	transport.SetDisconnectHandler(s.onDisconnect)
	return s
}

// notificationChannels lists the characteristics the speaker pushes
// unsolicited updates on, in subscription order.
func (s *Speaker) notificationChannels() []struct {
	char    string
	handler device.NotificationHandler
} {
	return []struct {
		char    string
		handler device.NotificationHandler
	}{
		{CharControl, s.onStatusNotification},
		{CharVolume, s.onVolumeNotification},
		{CharMediaInfo, s.onMediaInfoNotification},
		{CharEqualizer, s.onEqualizerNotification},
	}
}

// Connect establishes the transport link and subscribes to all four
// notification channels. Subscriptions are a single scoped step: if any
// fails, the ones already made are torn down and the whole attempt fails.
func (s *Speaker) Connect(ctx context.Context) error {
	s.logger.Info("Connecting to speaker...")
	if err := s.transport.Connect(ctx); err != nil {
		return err
	}

	channels := s.notificationChannels()
	for i, ch := range channels {
		s.logger.WithField("characteristic", ch.char).Debug("Subscribing to notifications")
		if err := s.transport.Subscribe(ch.char, ch.handler); err != nil {
			for j := i - 1; j >= 0; j-- {
				if unsubErr := s.transport.Unsubscribe(channels[j].char); unsubErr != nil {
					s.logger.WithFields(logrus.Fields{
						"characteristic": channels[j].char,
						"error":          unsubErr,
					}).Warn("Failed to unsubscribe during connect teardown")
				}
			}
			if discErr := s.transport.Disconnect(); discErr != nil {
				s.logger.WithField("error", discErr).Warn("Failed to disconnect during connect teardown")
			}
			return fmt.Errorf("failed to subscribe to characteristic %s: %w", ch.char, err)
		}
	}

	s.logger.Info("Speaker connected")
	return nil
}

// Disconnect releases the notification subscriptions and closes the link.
func (s *Speaker) Disconnect() error {
	for _, ch := range s.notificationChannels() {
		if err := s.transport.Unsubscribe(ch.char); err != nil {
			s.logger.WithFields(logrus.Fields{
				"characteristic": ch.char,
				"error":          err,
			}).Warn("Failed to unsubscribe from characteristic")
		}
	}
	return s.transport.Disconnect()
}

// IsConnected reports whether the transport link is up.
func (s *Speaker) IsConnected() bool {
	return s.transport.IsConnected()
}

// ----------------------------
// Notification handlers
// ----------------------------

func (s *Speaker) onVolumeNotification(data []byte) {
	if len(data) == 0 {
		s.logger.Warn("Empty volume notification")
		return
	}
	volume := int(data[0])
	s.logger.WithField("volume", volume).Debug("Volume notification")
	s.volumeCallbacks.Dispatch(func(cb VolumeCallback) { cb(volume) })
}

func (s *Speaker) onStatusNotification(data []byte) {
	s.logger.WithField("data", hex.EncodeToString(data)).Debug("Status notification")
	status, err := DecodeStatus(data)
	if err != nil {
		s.logger.WithField("error", err).Error("Failed to decode status notification")
		return
	}
	s.statusCallbacks.Dispatch(func(cb StatusCallback) { cb(status) })
}

func (s *Speaker) onMediaInfoNotification(data []byte) {
	s.logger.WithField("data", hex.EncodeToString(data)).Debug("Media info notification")

	s.assemblerMu.Lock()
	info, complete := s.assembler.Push(data)
	s.assemblerMu.Unlock()

	if !complete {
		return
	}
	s.mediaInfoCallbacks.Dispatch(func(cb MediaInfoCallback) { cb(info) })
}

func (s *Speaker) onEqualizerNotification(data []byte) {
	s.logger.WithField("data", hex.EncodeToString(data)).Debug("Equalizer notification")
	profile, err := DecodeEqualizer(data)
	if err != nil {
		s.logger.WithField("error", err).Error("Failed to decode equalizer notification")
		return
	}
	s.equalizerCallbacks.Dispatch(func(cb EqualizerCallback) { cb(profile) })
}

func (s *Speaker) onDisconnect() {
	s.logger.Warn("Speaker disconnected")
	s.disconnectCallbacks.Dispatch(func(cb DisconnectCallback) { cb() })
}

// ----------------------------
// Device operations
// ----------------------------

// GetStatus reads and decodes the current speaker status.
func (s *Speaker) GetStatus(ctx context.Context) (Status, error) {
	data, err := s.transport.Read(ctx, CharControl)
	if err != nil {
		return Status{}, err
	}
	return DecodeStatus(data)
}

// SetVolume sets the speaker volume (0-32).
func (s *Speaker) SetVolume(ctx context.Context, volume int) error {
	raw, err := EncodeVolume(volume)
	if err != nil {
		return err
	}
	s.logger.WithField("volume", volume).Debug("Setting volume")
	return s.transport.Write(ctx, CharVolume, []byte{raw}, true)
}

// GetVolume reads the current speaker volume.
func (s *Speaker) GetVolume(ctx context.Context) (int, error) {
	data, err := s.transport.Read(ctx, CharVolume)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: empty volume value", ErrProtocolDecode)
	}
	return int(data[0]), nil
}

// sendCommand writes a single command byte to the control characteristic.
func (s *Speaker) sendCommand(ctx context.Context, cmd byte) error {
	return s.transport.Write(ctx, CharControl, []byte{cmd}, true)
}

// SetSource selects the active audio input source.
func (s *Speaker) SetSource(ctx context.Context, source AudioSource) error {
	cmd, ok := sourceCommands[source]
	if !ok {
		return fmt.Errorf("unknown audio source %q", source)
	}
	s.logger.WithField("source", source).Debug("Setting audio source")
	return s.sendCommand(ctx, cmd)
}

// Play starts audio playback.
func (s *Speaker) Play(ctx context.Context) error {
	return s.sendCommand(ctx, cmdPlay)
}

// Pause pauses audio playback.
func (s *Speaker) Pause(ctx context.Context) error {
	return s.sendCommand(ctx, cmdPause)
}

// Next skips to the next track.
func (s *Speaker) Next(ctx context.Context) error {
	return s.sendCommand(ctx, cmdNext)
}

// Previous returns to the previous track.
func (s *Speaker) Previous(ctx context.Context) error {
	return s.sendCommand(ctx, cmdPrevious)
}

// SetInteractionSound toggles the button feedback sounds.
func (s *Speaker) SetInteractionSound(ctx context.Context, enabled bool) error {
	cmd := cmdDisableInteractionSound
	if enabled {
		cmd = cmdEnableInteractionSound
	}
	s.logger.WithField("enabled", enabled).Debug("Setting interaction sound")
	return s.sendCommand(ctx, cmd)
}

// SetLEDBrightness sets the LED brightness (0-35).
func (s *Speaker) SetLEDBrightness(ctx context.Context, brightness int) error {
	raw, err := EncodeLEDBrightness(brightness)
	if err != nil {
		return err
	}
	s.logger.WithField("brightness", brightness).Debug("Setting LED brightness")
	return s.transport.Write(ctx, CharLedBrightness, []byte{raw}, true)
}

// GetLEDBrightness reads the current LED brightness.
func (s *Speaker) GetLEDBrightness(ctx context.Context) (int, error) {
	data, err := s.transport.Read(ctx, CharLedBrightness)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: empty led brightness value", ErrProtocolDecode)
	}
	return DecodeLEDBrightness(data[0]), nil
}

// SetDeviceName sets the advertised device name.
func (s *Speaker) SetDeviceName(ctx context.Context, name string) error {
	data, err := EncodeDeviceName(name)
	if err != nil {
		return err
	}
	s.logger.WithField("name", name).Debug("Setting device name")
	return s.transport.Write(ctx, CharDeviceName, data, true)
}

// GetDeviceName reads the current device name.
func (s *Speaker) GetDeviceName(ctx context.Context) (string, error) {
	data, err := s.transport.Read(ctx, CharDeviceName)
	if err != nil {
		return "", err
	}
	return DecodeDeviceName(data)
}

// SetEqualiserProfile writes the five band gains.
func (s *Speaker) SetEqualiserProfile(ctx context.Context, profile EqProfile) error {
	data := EncodeEqualizer(profile)
	s.logger.WithField("data", hex.EncodeToString(data)).Debug("Setting equalizer profile")
	return s.transport.Write(ctx, CharEqualizer, data, true)
}

// GetEqualiserProfile reads the current band gains.
func (s *Speaker) GetEqualiserProfile(ctx context.Context) (EqProfile, error) {
	data, err := s.transport.Read(ctx, CharEqualizer)
	if err != nil {
		return EqProfile{}, err
	}
	return DecodeEqualizer(data)
}

// SetEqualiserPreset writes a preset's profile. The preset's profile is
// valid by construction, so no extra validation happens.
func (s *Speaker) SetEqualiserPreset(ctx context.Context, preset EqPreset) error {
	return s.SetEqualiserProfile(ctx, preset.Profile())
}

// GetEqualiserPreset reads the current profile and matches it against the
// preset constants. The second return value is false when the profile is
// custom.
func (s *Speaker) GetEqualiserPreset(ctx context.Context) (EqPreset, bool, error) {
	profile, err := s.GetEqualiserProfile(ctx)
	if err != nil {
		return "", false, err
	}
	preset, ok := MatchPreset(profile)
	return preset, ok, nil
}

// EnterPairingMode puts the speaker into Bluetooth pairing mode. The
// device drops the BLE connection shortly after.
func (s *Speaker) EnterPairingMode(ctx context.Context) error {
	s.logger.Info("Entering pairing mode")
	return s.transport.Write(ctx, CharPairing, []byte{0x00}, true)
}

// ----------------------------
// Callback registration
// ----------------------------

// RegisterDisconnectCallback registers a disconnect event handler and
// returns a cancellation ID.
func (s *Speaker) RegisterDisconnectCallback(cb DisconnectCallback) int {
	return s.disconnectCallbacks.Register(cb)
}

// CancelDisconnectCallback removes a disconnect handler by ID.
func (s *Speaker) CancelDisconnectCallback(id int) error {
	return s.disconnectCallbacks.Cancel(id)
}

// RegisterStatusCallback registers a status update handler.
func (s *Speaker) RegisterStatusCallback(cb StatusCallback) int {
	return s.statusCallbacks.Register(cb)
}

// CancelStatusCallback removes a status handler by ID.
func (s *Speaker) CancelStatusCallback(id int) error {
	return s.statusCallbacks.Cancel(id)
}

// RegisterVolumeCallback registers a volume change handler.
func (s *Speaker) RegisterVolumeCallback(cb VolumeCallback) int {
	return s.volumeCallbacks.Register(cb)
}

// CancelVolumeCallback removes a volume handler by ID.
func (s *Speaker) CancelVolumeCallback(id int) error {
	return s.volumeCallbacks.Cancel(id)
}

// RegisterMediaInfoCallback registers a track metadata handler.
func (s *Speaker) RegisterMediaInfoCallback(cb MediaInfoCallback) int {
	return s.mediaInfoCallbacks.Register(cb)
}

// CancelMediaInfoCallback removes a media info handler by ID.
func (s *Speaker) CancelMediaInfoCallback(id int) error {
	return s.mediaInfoCallbacks.Cancel(id)
}

// RegisterEqualizerCallback registers an equalizer change handler.
func (s *Speaker) RegisterEqualizerCallback(cb EqualizerCallback) int {
	return s.equalizerCallbacks.Register(cb)
}

// CancelEqualizerCallback removes an equalizer handler by ID.
func (s *Speaker) CancelEqualizerCallback(id int) error {
	return s.equalizerCallbacks.Cancel(id)
}
