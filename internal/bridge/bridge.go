package bridge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/stanmore2/internal/mqtt"
	"github.com/srg/stanmore2/internal/stanmore"
)

// defaultSettleDelay is how long the bridge waits after a write before
// reading back authoritative state. The speaker needs a moment to apply a
// change before a read returns the new value.
const defaultSettleDelay = 500 * time.Millisecond

// Bus is the message-bus surface the bridge needs. *mqtt.Client satisfies
// it.
type Bus interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Options configures a Bridge.
type Options struct {
	TopicPrefix string

	// Retain marks outbound info messages as retained on the broker.
	Retain bool

	// QoS for all publishes and the command subscription.
	QoS byte

	// AllowPairing enables the enter_pairing_mode command. Off by default
	// since pairing drops the device connection.
	AllowPairing bool

	// SettleDelay overrides the wait between a write and its read-back.
	// Zero means the default.
	SettleDelay time.Duration

	// OnDeviceLost is invoked when the speaker connection drops. The
	// caller decides the shutdown policy.
	OnDeviceLost func()
}

// Bridge routes inbound command messages to speaker operations and
// republishes the resulting state, and forwards the speaker's own
// notifications to info topics.
type Bridge struct {
	speaker *stanmore.Speaker
	bus     Bus
	topics  Topics
	logger  *logrus.Logger

	retain       bool
	qos          byte
	allowPairing bool
	settle       time.Duration
	onDeviceLost func()

	ctx context.Context
}

// eqBandIndex maps topic band names to their position in the profile.
var eqBandIndex = func() map[string]int {
	m := make(map[string]int, len(stanmore.EqBandLabels))
	for i, label := range stanmore.EqBandLabels {
		m[label] = i
	}
	return m
}()

// New creates a bridge between the speaker and the bus.
func New(speaker *stanmore.Speaker, bus Bus, opts Options, logger *logrus.Logger) *Bridge {
	if logger == nil {
		logger = logrus.New()
	}
	settle := opts.SettleDelay
	if settle == 0 {
		settle = defaultSettleDelay
	}

	return &Bridge{
		speaker:      speaker,
		bus:          bus,
		topics:       Topics{Prefix: opts.TopicPrefix},
		logger:       logger,
		retain:       opts.Retain,
		qos:          opts.QoS,
		allowPairing: opts.AllowPairing,
		settle:       settle,
		onDeviceLost: opts.OnDeviceLost,
		ctx:          context.Background(),
	}
}

// Start registers the speaker event callbacks, subscribes to the command
// topic space, and publishes the initial device state.
func (b *Bridge) Start(ctx context.Context) error {
	b.ctx = ctx

	b.speaker.RegisterDisconnectCallback(b.onSpeakerDisconnect)
	b.speaker.RegisterStatusCallback(b.onSpeakerStatus)
	b.speaker.RegisterVolumeCallback(b.onSpeakerVolume)
	b.speaker.RegisterMediaInfoCallback(b.onSpeakerMediaInfo)
	b.speaker.RegisterEqualizerCallback(b.onSpeakerEqualizer)

	wildcard := b.topics.CommandWildcard()
	b.logger.WithField("topic", wildcard).Info("Subscribing to command topics")
	if err := b.bus.Subscribe(wildcard, b.qos, b.HandleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to command topics: %w", err)
	}

	if err := b.publishStatusFromDevice(); err != nil {
		b.logger.WithField("error", err).Warn("Failed to publish initial status")
	}

	return nil
}

// ----------------------------
// Speaker event handlers
// ----------------------------

func (b *Bridge) onSpeakerDisconnect() {
	b.logger.Error("Speaker connection lost")
	if b.onDeviceLost != nil {
		b.onDeviceLost()
	}
}

func (b *Bridge) onSpeakerStatus(status stanmore.Status) {
	b.publishStatus(status)
}

func (b *Bridge) onSpeakerVolume(volume int) {
	b.publishInfo("volume", strconv.Itoa(volume))
}

func (b *Bridge) onSpeakerMediaInfo(info stanmore.MediaInfo) {
	b.publishInfo("media/title", stringOrEmpty(info.Title))
	b.publishInfo("media/artist", stringOrEmpty(info.Artist))
	b.publishInfo("media/album", stringOrEmpty(info.Album))
}

func (b *Bridge) onSpeakerEqualizer(profile stanmore.EqProfile) {
	b.publishEqProfile(profile)
	b.publishEqPreset(profile)
}

// ----------------------------
// Command routing
// ----------------------------

// HandleMessage dispatches one inbound bus message. Topics outside the
// command space and unknown command suffixes are ignored. A returned error
// means the single message was dropped; the bus session is unaffected.
func (b *Bridge) HandleMessage(topic string, payload []byte) error {
	suffix, ok := b.topics.CommandSuffix(topic)
	if !ok {
		return nil
	}

	b.logger.WithFields(logrus.Fields{
		"command": suffix,
		"payload": string(payload),
	}).Debug("Command received")

	switch suffix {
	case "set_volume":
		return b.handleSetVolume(payload)
	case "get_volume":
		return b.publishVolumeFromDevice()
	case "set_eq_preset":
		return b.handleSetEqPreset(payload)
	case "get_eq_preset":
		return b.publishEqPresetFromDevice()
	case "set_eq_profile":
		return b.handleSetEqProfile(payload)
	case "get_eq_profile":
		return b.publishEqProfileFromDevice()
	case "set_device_name":
		return b.handleSetDeviceName(payload)
	case "get_device_name":
		return b.publishDeviceNameFromDevice()
	case "set_led_brightness":
		return b.handleSetLedBrightness(payload)
	case "get_led_brightness":
		return b.publishLedBrightnessFromDevice()
	case "play":
		return b.speaker.Play(b.ctx)
	case "pause":
		return b.speaker.Pause(b.ctx)
	case "next":
		return b.speaker.Next(b.ctx)
	case "previous":
		return b.speaker.Previous(b.ctx)
	case "set_interaction_sound":
		return b.handleSetInteractionSound(payload)
	case "get_status":
		return b.publishStatusFromDevice()
	case "set_source":
		return b.handleSetSource(payload)
	case "wakeup":
		return b.handleWakeup()
	case "enter_pairing_mode":
		if !b.allowPairing {
			b.logger.Warn("Pairing command ignored, pairing is disabled")
			return nil
		}
		return b.speaker.EnterPairingMode(b.ctx)
	default:
		if band, found := strings.CutPrefix(suffix, "set_eq_profile/"); found {
			if idx, known := eqBandIndex[band]; known {
				return b.handleSetEqBand(band, idx, payload)
			}
		}
		b.logger.WithField("topic", topic).Debug("Ignoring unknown command topic")
		return nil
	}
}

func (b *Bridge) handleSetVolume(payload []byte) error {
	volume, err := strconv.Atoi(strings.TrimSpace(string(payload)))
	if err != nil {
		return fmt.Errorf("%w: set_volume %q", ErrPayloadDecode, payload)
	}
	if err := b.speaker.SetVolume(b.ctx, volume); err != nil {
		if errors.Is(err, stanmore.ErrInvalidVolume) {
			return fmt.Errorf("%w: set_volume: %w", ErrPayloadDecode, err)
		}
		return err
	}
	b.settleDown()
	return b.publishVolumeFromDevice()
}

func (b *Bridge) handleSetEqPreset(payload []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(payload)))
	preset, ok := stanmore.ParseEqPreset(name)
	if !ok {
		return fmt.Errorf("%w: set_eq_preset %q", ErrPayloadDecode, payload)
	}
	if err := b.speaker.SetEqualiserPreset(b.ctx, preset); err != nil {
		return err
	}
	b.settleDown()
	if err := b.publishEqPresetFromDevice(); err != nil {
		return err
	}
	return b.publishEqProfileFromDevice()
}

func (b *Bridge) handleSetEqProfile(payload []byte) error {
	fields := strings.Split(strings.TrimSpace(string(payload)), " ")
	if len(fields) != 5 {
		return fmt.Errorf("%w: set_eq_profile %q", ErrPayloadDecode, payload)
	}

	var bands [5]int
	for i, field := range fields {
		value, err := strconv.Atoi(field)
		if err != nil {
			return fmt.Errorf("%w: set_eq_profile %q", ErrPayloadDecode, payload)
		}
		bands[i] = value
	}

	profile, err := stanmore.NewEqProfile(bands[0], bands[1], bands[2], bands[3], bands[4])
	if err != nil {
		return fmt.Errorf("%w: set_eq_profile: %w", ErrPayloadDecode, err)
	}

	if err := b.speaker.SetEqualiserProfile(b.ctx, profile); err != nil {
		return err
	}
	b.settleDown()
	if err := b.publishEqProfileFromDevice(); err != nil {
		return err
	}
	return b.publishEqPresetFromDevice()
}

// handleSetEqBand overwrites a single band of the current profile and
// writes the result back.
func (b *Bridge) handleSetEqBand(band string, idx int, payload []byte) error {
	value, err := strconv.Atoi(strings.TrimSpace(string(payload)))
	if err != nil {
		return fmt.Errorf("%w: set_eq_profile/%s %q", ErrPayloadDecode, band, payload)
	}

	current, err := b.speaker.GetEqualiserProfile(b.ctx)
	if err != nil {
		return err
	}

	bands := current.Bands()
	bands[idx] = value
	profile, err := stanmore.NewEqProfile(bands[0], bands[1], bands[2], bands[3], bands[4])
	if err != nil {
		return fmt.Errorf("%w: set_eq_profile/%s: %w", ErrPayloadDecode, band, err)
	}

	if err := b.speaker.SetEqualiserProfile(b.ctx, profile); err != nil {
		return err
	}
	b.settleDown()
	if err := b.publishEqProfileFromDevice(); err != nil {
		return err
	}
	return b.publishEqPresetFromDevice()
}

func (b *Bridge) handleSetDeviceName(payload []byte) error {
	if err := b.speaker.SetDeviceName(b.ctx, string(payload)); err != nil {
		if errors.Is(err, stanmore.ErrInvalidDeviceName) {
			return fmt.Errorf("%w: set_device_name: %w", ErrPayloadDecode, err)
		}
		return err
	}
	b.settleDown()
	return b.publishDeviceNameFromDevice()
}

func (b *Bridge) handleSetLedBrightness(payload []byte) error {
	brightness, err := strconv.Atoi(strings.TrimSpace(string(payload)))
	if err != nil {
		return fmt.Errorf("%w: set_led_brightness %q", ErrPayloadDecode, payload)
	}
	if err := b.speaker.SetLEDBrightness(b.ctx, brightness); err != nil {
		if errors.Is(err, stanmore.ErrInvalidLedBrightness) {
			return fmt.Errorf("%w: set_led_brightness: %w", ErrPayloadDecode, err)
		}
		return err
	}
	b.settleDown()
	return b.publishLedBrightnessFromDevice()
}

func (b *Bridge) handleSetInteractionSound(payload []byte) error {
	value, err := strconv.Atoi(strings.TrimSpace(string(payload)))
	if err != nil {
		return fmt.Errorf("%w: set_interaction_sound %q", ErrPayloadDecode, payload)
	}
	if err := b.speaker.SetInteractionSound(b.ctx, value != 0); err != nil {
		return err
	}
	b.settleDown()
	return b.publishStatusFromDevice()
}

func (b *Bridge) handleSetSource(payload []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(payload)))
	source, ok := stanmore.ParseAudioSource(name)
	if !ok {
		return fmt.Errorf("%w: set_source %q", ErrPayloadDecode, payload)
	}
	if err := b.speaker.SetSource(b.ctx, source); err != nil {
		return err
	}
	b.settleDown()
	return b.publishStatusFromDevice()
}

// handleWakeup re-establishes the speaker connection if needed and
// refreshes the published status.
func (b *Bridge) handleWakeup() error {
	if !b.speaker.IsConnected() {
		if err := b.speaker.Connect(b.ctx); err != nil {
			return err
		}
	}
	return b.publishStatusFromDevice()
}

// ----------------------------
// State publishing
// ----------------------------

func (b *Bridge) publishInfo(suffix, payload string) {
	topic := b.topics.Info(suffix)
	if err := b.bus.Publish(topic, []byte(payload), b.qos, b.retain); err != nil {
		b.logger.WithFields(logrus.Fields{
			"topic": topic,
			"error": err,
		}).Warn("Failed to publish state")
	}
}

func (b *Bridge) publishVolumeFromDevice() error {
	volume, err := b.speaker.GetVolume(b.ctx)
	if err != nil {
		return err
	}
	b.publishInfo("volume", strconv.Itoa(volume))
	return nil
}

func (b *Bridge) publishStatus(status stanmore.Status) {
	b.publishInfo("play_status", string(status.PlayStatus))
	b.publishInfo("audio_source", string(status.AudioSource))
	b.publishInfo("interaction_sound_enabled", boolPayload(status.InteractionSoundEnabled))
}

func (b *Bridge) publishStatusFromDevice() error {
	status, err := b.speaker.GetStatus(b.ctx)
	if err != nil {
		return err
	}
	b.publishStatus(status)
	return nil
}

func (b *Bridge) publishEqProfile(profile stanmore.EqProfile) {
	bands := profile.Bands()
	parts := make([]string, len(bands))
	for i, value := range bands {
		parts[i] = strconv.Itoa(value)
	}
	b.publishInfo("eq_profile", strings.Join(parts, " "))
	for i, label := range stanmore.EqBandLabels {
		b.publishInfo("eq_profile/"+label, strconv.Itoa(bands[i]))
	}
}

// publishEqPreset publishes the preset name the profile matches, or
// "custom".
func (b *Bridge) publishEqPreset(profile stanmore.EqProfile) {
	payload := "custom"
	if preset, ok := stanmore.MatchPreset(profile); ok {
		payload = string(preset)
	}
	b.publishInfo("eq_preset", payload)
}

func (b *Bridge) publishEqProfileFromDevice() error {
	profile, err := b.speaker.GetEqualiserProfile(b.ctx)
	if err != nil {
		return err
	}
	b.publishEqProfile(profile)
	return nil
}

func (b *Bridge) publishEqPresetFromDevice() error {
	profile, err := b.speaker.GetEqualiserProfile(b.ctx)
	if err != nil {
		return err
	}
	b.publishEqPreset(profile)
	return nil
}

func (b *Bridge) publishDeviceNameFromDevice() error {
	name, err := b.speaker.GetDeviceName(b.ctx)
	if err != nil {
		return err
	}
	b.publishInfo("device_name", name)
	return nil
}

func (b *Bridge) publishLedBrightnessFromDevice() error {
	brightness, err := b.speaker.GetLEDBrightness(b.ctx)
	if err != nil {
		return err
	}
	b.publishInfo("led_brightness", strconv.Itoa(brightness))
	return nil
}

// settleDown waits out the device's apply latency before a read-back.
func (b *Bridge) settleDown() {
	timer := time.NewTimer(b.settle)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-b.ctx.Done():
	}
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func boolPayload(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
