package stanmore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeVolumeRoundTrip(t *testing.T) {
	for v := 0; v <= MaxVolume; v++ {
		raw, err := EncodeVolume(v)
		require.NoError(t, err)
		assert.Equal(t, v, int(raw))
	}
}

func TestEncodeVolumeOutOfRange(t *testing.T) {
	for _, v := range []int{-1, 33, 100, -42} {
		_, err := EncodeVolume(v)
		assert.ErrorIs(t, err, ErrInvalidVolume, "volume %d", v)
	}
}

func TestLedBrightnessRoundTrip(t *testing.T) {
	for b := 0; b <= MaxLedBrightness; b++ {
		raw, err := EncodeLEDBrightness(b)
		require.NoError(t, err)
		assert.Equal(t, b+35, int(raw), "device stores brightness on an offset scale")
		assert.Equal(t, b, DecodeLEDBrightness(raw))
	}
}

func TestLedBrightnessOutOfRange(t *testing.T) {
	for _, b := range []int{-1, 36, 255} {
		_, err := EncodeLEDBrightness(b)
		assert.ErrorIs(t, err, ErrInvalidLedBrightness, "brightness %d", b)
	}
}

func TestEqualizerRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		bands [5]int
	}{
		{"all zero", [5]int{0, 0, 0, 0, 0}},
		{"all max", [5]int{10, 10, 10, 10, 10}},
		{"mixed", [5]int{8, 6, 3, 5, 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile, err := NewEqProfile(tt.bands[0], tt.bands[1], tt.bands[2], tt.bands[3], tt.bands[4])
			require.NoError(t, err)

			decoded, err := DecodeEqualizer(EncodeEqualizer(profile))
			require.NoError(t, err)
			assert.Equal(t, profile, decoded)
		})
	}
}

func TestNewEqProfileOutOfRange(t *testing.T) {
	_, err := NewEqProfile(11, 5, 5, 5, 5)
	assert.ErrorIs(t, err, ErrInvalidEqualizerValue)

	_, err = NewEqProfile(5, 5, 5, 5, -1)
	assert.ErrorIs(t, err, ErrInvalidEqualizerValue)
}

func TestDecodeEqualizerBadInput(t *testing.T) {
	_, err := DecodeEqualizer([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrProtocolDecode)

	_, err = DecodeEqualizer([]byte{1, 2, 3, 4, 11})
	assert.ErrorIs(t, err, ErrInvalidEqualizerValue)
}

func TestMatchPreset(t *testing.T) {
	for _, preset := range eqPresets {
		matched, ok := MatchPreset(preset.Profile())
		require.True(t, ok, "preset %s must match its own profile", preset)
		assert.Equal(t, preset, matched)
	}

	custom, err := NewEqProfile(1, 2, 3, 4, 5)
	require.NoError(t, err)
	_, ok := MatchPreset(custom)
	assert.False(t, ok)
}

func TestDeviceNameRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"short", "A"},
		{"typical", "Living Room"},
		{"max length", "17 bytes exactly!"},
		{"multibyte utf8", "Küche"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeDeviceName(tt.value)
			require.NoError(t, err)
			assert.Equal(t, byte(0x01), data[0])
			assert.Equal(t, byte(len(tt.value)), data[1])

			decoded, err := DecodeDeviceName(data)
			require.NoError(t, err)
			assert.Equal(t, tt.value, decoded)
		})
	}
}

func TestEncodeDeviceNameInvalid(t *testing.T) {
	_, err := EncodeDeviceName("")
	assert.ErrorIs(t, err, ErrInvalidDeviceName)

	_, err = EncodeDeviceName("this name is way too long for it")
	assert.ErrorIs(t, err, ErrInvalidDeviceName)

	// 17 runes but more than 17 bytes once encoded.
	_, err = EncodeDeviceName("ööööööööööööööööö")
	assert.ErrorIs(t, err, ErrInvalidDeviceName)
}

func TestDecodeStatus(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Status
	}{
		{
			name: "bluetooth paused with interaction sound",
			data: []byte{0x03, 0x01, 0xFF, 0x01},
			want: Status{SourceBluetooth, PlayStatusPaused, true},
		},
		{
			name: "aux playing without interaction sound",
			data: []byte{0x01, 0x00, 0x00, 0x00},
			want: Status{SourceAux, PlayStatusPlaying, false},
		},
		{
			name: "rca stopped",
			data: []byte{0x04, 0x02, 0x00, 0x01},
			want: Status{SourceRCA, PlayStatusStopped, true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err := DecodeStatus(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestDecodeStatusErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"short value", []byte{0x03, 0x01}},
		{"unknown source code", []byte{0x7F, 0x01, 0x00, 0x01}},
		{"unknown play status code", []byte{0x03, 0x7F, 0x00, 0x01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeStatus(tt.data)
			assert.ErrorIs(t, err, ErrProtocolDecode)
		})
	}
}

func TestFindMediaField(t *testing.T) {
	buf := []byte{
		0x00, 0x00, 0x00, 0x01, 0x00, 0x6A, 0x00, 0x05, 'h', 'e', 'l', 'l', 'o',
		0x00, 0x00, 0x00, 0x02, 0x00, 0x6A, 0x00, 0x06, 'a', 'r', 't', 'i', 's', 't',
	}

	title := findMediaField(buf, mediaFieldTitle)
	require.NotNil(t, title)
	assert.Equal(t, "hello", *title)

	artist := findMediaField(buf, mediaFieldArtist)
	require.NotNil(t, artist)
	assert.Equal(t, "artist", *artist)

	assert.Nil(t, findMediaField(buf, mediaFieldAlbum))
}

func TestFindMediaFieldTruncated(t *testing.T) {
	// Length byte claims more data than the buffer holds; the value is
	// clamped instead of failing.
	buf := []byte{0x00, 0x00, 0x00, 0x01, 0x00, 0x6A, 0x00, 0x20, 'h', 'i'}
	title := findMediaField(buf, mediaFieldTitle)
	require.NotNil(t, title)
	assert.Equal(t, "hi", *title)

	// Marker with no length byte at all.
	assert.Nil(t, findMediaField([]byte{0x00, 0x00, 0x00, 0x01, 0x00, 0x6A, 0x00}, mediaFieldTitle))
}

func TestParseEqPreset(t *testing.T) {
	preset, ok := ParseEqPreset("rock")
	require.True(t, ok)
	assert.Equal(t, PresetRock, preset)

	_, ok = ParseEqPreset("dubstep")
	assert.False(t, ok)
}

func TestParseAudioSource(t *testing.T) {
	source, ok := ParseAudioSource("aux")
	require.True(t, ok)
	assert.Equal(t, SourceAux, source)

	_, ok = ParseAudioSource("cassette")
	assert.False(t, ok)
}
