package stanmore

import (
	"bytes"
	"fmt"
	"unicode/utf8"
)

// Device value ranges and wire-layout constants.
const (
	// MaxVolume is the highest volume level the device accepts.
	MaxVolume = 32

	// MaxLedBrightness is the highest logical LED brightness. The device
	// stores brightness on an offset scale: raw byte = logical + 35.
	MaxLedBrightness    = 35
	ledBrightnessOffset = 35

	// MaxEqBandValue is the highest gain for a single equalizer band.
	MaxEqBandValue = 10

	// maxDeviceNameBytes limits the UTF-8 encoded device name length.
	maxDeviceNameBytes = 17

	// deviceNameHeaderLen is the size of the header the device prepends to
	// the stored name (a fixed 0x01 byte plus a length byte).
	deviceNameHeaderLen = 2
)

// Byte offsets within the control characteristic's value.
const (
	statusIndexSource           = 0
	statusIndexPlayStatus       = 1
	statusIndexInteractionSound = 3
)

// Media-info field identifiers. Each field is announced by the 7-byte
// marker 00 00 00 <id> 00 6A 00 followed by a length byte and UTF-8 text.
const (
	mediaFieldTitle  byte = 0x01
	mediaFieldArtist byte = 0x02
	mediaFieldAlbum  byte = 0x03
)

// DecodeStatus decodes the control characteristic's raw value.
func DecodeStatus(data []byte) (Status, error) {
	if len(data) <= statusIndexInteractionSound {
		return Status{}, fmt.Errorf("%w: status value is %d bytes, need at least %d",
			ErrProtocolDecode, len(data), statusIndexInteractionSound+1)
	}

	source, ok := sourceStatusCodes[data[statusIndexSource]]
	if !ok {
		return Status{}, fmt.Errorf("%w: unknown audio source code 0x%02x",
			ErrProtocolDecode, data[statusIndexSource])
	}

	play, ok := playStatusCodes[data[statusIndexPlayStatus]]
	if !ok {
		return Status{}, fmt.Errorf("%w: unknown play status code 0x%02x",
			ErrProtocolDecode, data[statusIndexPlayStatus])
	}

	return Status{
		AudioSource:             source,
		PlayStatus:              play,
		InteractionSoundEnabled: data[statusIndexInteractionSound] == 1,
	}, nil
}

// EncodeVolume validates a volume level and returns its wire byte.
func EncodeVolume(volume int) (byte, error) {
	if volume < 0 || volume > MaxVolume {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidVolume, volume)
	}
	return byte(volume), nil
}

// DecodeEqualizer decodes the five positional band gains.
func DecodeEqualizer(data []byte) (EqProfile, error) {
	if len(data) < 5 {
		return EqProfile{}, fmt.Errorf("%w: equalizer value is %d bytes, need 5",
			ErrProtocolDecode, len(data))
	}
	return NewEqProfile(int(data[0]), int(data[1]), int(data[2]), int(data[3]), int(data[4]))
}

// EncodeEqualizer encodes a profile into its 5-byte wire form. The profile
// is already range-checked at construction, so no validation happens here.
func EncodeEqualizer(p EqProfile) []byte {
	bands := p.Bands()
	data := make([]byte, len(bands))
	for i, band := range bands {
		data[i] = byte(band)
	}
	return data
}

// EncodeDeviceName validates a name and returns the device's write layout:
// [0x01, length, ...utf8 bytes].
func EncodeDeviceName(name string) ([]byte, error) {
	encoded := []byte(name)
	if len(encoded) == 0 || len(encoded) > maxDeviceNameBytes {
		return nil, fmt.Errorf("%w: encoded length is %d", ErrInvalidDeviceName, len(encoded))
	}
	data := make([]byte, 0, deviceNameHeaderLen+len(encoded))
	data = append(data, 0x01, byte(len(encoded)))
	return append(data, encoded...), nil
}

// DecodeDeviceName strips the device's two-byte header and returns the name.
func DecodeDeviceName(data []byte) (string, error) {
	if len(data) < deviceNameHeaderLen {
		return "", fmt.Errorf("%w: device name value is %d bytes, need at least %d",
			ErrProtocolDecode, len(data), deviceNameHeaderLen)
	}
	name := data[deviceNameHeaderLen:]
	if !utf8.Valid(name) {
		return "", fmt.Errorf("%w: device name is not valid UTF-8", ErrProtocolDecode)
	}
	return string(name), nil
}

// EncodeLEDBrightness validates a logical brightness and returns its raw byte.
func EncodeLEDBrightness(brightness int) (byte, error) {
	if brightness < 0 || brightness > MaxLedBrightness {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidLedBrightness, brightness)
	}
	return byte(brightness + ledBrightnessOffset), nil
}

// DecodeLEDBrightness converts a raw brightness byte back to its logical value.
func DecodeLEDBrightness(raw byte) int {
	return int(raw) - ledBrightnessOffset
}

// findMediaField extracts one metadata field from a complete media-info
// buffer. Returns nil when the field's marker is absent. A length byte that
// runs past the end of the buffer is clamped, matching device behavior on
// truncated trailing fields.
func findMediaField(data []byte, fieldID byte) *string {
	marker := []byte{0x00, 0x00, 0x00, fieldID, 0x00, 0x6A, 0x00}

	pos := bytes.Index(data, marker)
	if pos < 0 {
		return nil
	}

	lengthPos := pos + len(marker)
	if lengthPos >= len(data) {
		return nil
	}

	start := lengthPos + 1
	end := start + int(data[lengthPos])
	if end > len(data) {
		end = len(data)
	}
	if start > len(data) {
		return nil
	}

	value := string(data[start:end])
	return &value
}

// decodeMediaInfo extracts the three metadata fields independently; a
// missing field never blocks the others.
func decodeMediaInfo(data []byte) MediaInfo {
	return MediaInfo{
		Title:  findMediaField(data, mediaFieldTitle),
		Artist: findMediaField(data, mediaFieldArtist),
		Album:  findMediaField(data, mediaFieldAlbum),
	}
}
