package stanmore

import "fmt"

// AudioSource identifies one of the speaker's physical input sources.
type AudioSource string

const (
	SourceBluetooth AudioSource = "bluetooth"
	SourceAux       AudioSource = "aux"
	SourceRCA       AudioSource = "rca"
)

// PlayStatus describes the current playback state of the active source.
type PlayStatus string

const (
	PlayStatusPlaying PlayStatus = "playing"
	PlayStatusPaused  PlayStatus = "paused"
	PlayStatusStopped PlayStatus = "stopped"
)

// Status is a snapshot of the speaker's control characteristic.
type Status struct {
	AudioSource             AudioSource
	PlayStatus              PlayStatus
	InteractionSoundEnabled bool
}

// MediaInfo carries track metadata assembled from a multi-packet
// media-info notification. Fields the device did not report are nil.
type MediaInfo struct {
	Title  *string
	Artist *string
	Album  *string
}

// EqProfile holds the five equalizer band gains. Each band is in [0, 10].
// Construct via NewEqProfile so the range invariant always holds.
type EqProfile struct {
	Hz160  int
	Hz400  int
	Hz1000 int
	Hz2500 int
	Hz6250 int
}

// NewEqProfile validates each band gain and returns the profile.
func NewEqProfile(hz160, hz400, hz1000, hz2500, hz6250 int) (EqProfile, error) {
	p := EqProfile{Hz160: hz160, Hz400: hz400, Hz1000: hz1000, Hz2500: hz2500, Hz6250: hz6250}
	for i, band := range p.Bands() {
		if band < 0 || band > MaxEqBandValue {
			return EqProfile{}, fmt.Errorf("%w: band %s is %d, must be within 0 and %d",
				ErrInvalidEqualizerValue, EqBandLabels[i], band, MaxEqBandValue)
		}
	}
	return p, nil
}

// Bands returns the gains in wire order: 160, 400, 1000, 2500, 6250 Hz.
func (p EqProfile) Bands() [5]int {
	return [5]int{p.Hz160, p.Hz400, p.Hz1000, p.Hz2500, p.Hz6250}
}

// EqBandLabels are the band names in wire order, as used in bus topics.
var EqBandLabels = [5]string{"160hz", "400hz", "1000hz", "2500hz", "6250hz"}

// EqPreset names one of the speaker's built-in equalizer profiles.
type EqPreset string

const (
	PresetFlat       EqPreset = "flat"
	PresetRock       EqPreset = "rock"
	PresetMetal      EqPreset = "metal"
	PresetPop        EqPreset = "pop"
	PresetHipHop     EqPreset = "hiphop"
	PresetElectronic EqPreset = "electronic"
	PresetJazz       EqPreset = "jazz"
)

// eqPresets lists every preset in a fixed order so preset matching is
// deterministic.
var eqPresets = []EqPreset{
	PresetFlat, PresetRock, PresetMetal, PresetPop,
	PresetHipHop, PresetElectronic, PresetJazz,
}

var presetProfiles = map[EqPreset]EqProfile{
	PresetFlat:       {5, 5, 5, 5, 5},
	PresetRock:       {8, 6, 3, 5, 7},
	PresetMetal:      {8, 3, 5, 7, 8},
	PresetPop:        {6, 7, 8, 4, 5},
	PresetHipHop:     {8, 7, 6, 5, 5},
	PresetElectronic: {7, 4, 4, 7, 6},
	PresetJazz:       {4, 7, 5, 4, 5},
}

// Profile returns the band gains the preset stands for.
func (p EqPreset) Profile() EqProfile {
	return presetProfiles[p]
}

// ParseEqPreset resolves a preset by name.
func ParseEqPreset(name string) (EqPreset, bool) {
	preset := EqPreset(name)
	_, ok := presetProfiles[preset]
	return preset, ok
}

// MatchPreset reports the preset whose profile is value-equal to p,
// or false if the profile is custom.
func MatchPreset(p EqProfile) (EqPreset, bool) {
	for _, preset := range eqPresets {
		if presetProfiles[preset] == p {
			return preset, true
		}
	}
	return "", false
}

// ParseAudioSource resolves a source by name.
func ParseAudioSource(name string) (AudioSource, bool) {
	src := AudioSource(name)
	_, ok := sourceCommands[src]
	return src, ok
}

// Command codes written to the control characteristic. The audio-source
// codes differ from the codes the device reports in status reads; the two
// tables are kept separate on purpose.
var sourceCommands = map[AudioSource]byte{
	SourceBluetooth: 0x0C,
	SourceAux:       0x0D,
	SourceRCA:       0x0E,
}

// Status codes read back from the control characteristic.
var sourceStatusCodes = map[byte]AudioSource{
	0x03: SourceBluetooth,
	0x01: SourceAux,
	0x04: SourceRCA,
}

var playStatusCodes = map[byte]PlayStatus{
	0x00: PlayStatusPlaying,
	0x01: PlayStatusPaused,
	0x02: PlayStatusStopped,
}

// Transport control and interaction-sound command codes.
const (
	cmdPause                   byte = 0x00
	cmdPlay                    byte = 0x01
	cmdPrevious                byte = 0x02
	cmdNext                    byte = 0x03
	cmdDisableInteractionSound byte = 0x10
	cmdEnableInteractionSound  byte = 0x11
)

// Callback signatures for the five event kinds the speaker reports.
type (
	DisconnectCallback func()
	StatusCallback     func(Status)
	VolumeCallback     func(volume int)
	MediaInfoCallback  func(MediaInfo)
	EqualizerCallback  func(EqProfile)
)
