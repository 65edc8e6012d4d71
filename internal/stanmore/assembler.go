package stanmore

import "bytes"

// mediaSentinel marks the end of a multi-packet media-info message.
var mediaSentinel = []byte{0x00, 0x00, 0x00, 0xFF, 0x00, 0x00, 0x00, 0x00}

// mediaAssembler accumulates media-info notification chunks until the
// terminating sentinel arrives. The buffer is reset after every completed
// message, so one corrupt message cannot wedge the next one. There is no
// timeout: a message that never sees the sentinel accumulates until the
// connection resets.
type mediaAssembler struct {
	buf []byte
}

// Push appends a chunk and, when the buffer now ends with the sentinel,
// decodes the complete message and resets the buffer. The second return
// value reports whether a complete message was produced.
func (a *mediaAssembler) Push(chunk []byte) (MediaInfo, bool) {
	a.buf = append(a.buf, chunk...)

	if len(a.buf) < len(mediaSentinel) {
		return MediaInfo{}, false
	}
	if !bytes.Equal(a.buf[len(a.buf)-len(mediaSentinel):], mediaSentinel) {
		return MediaInfo{}, false
	}

	// Hand the buffer off before decoding so the reset happens no matter
	// what the decode finds.
	data := a.buf
	a.buf = nil

	return decodeMediaInfo(data), true
}

// Len reports the number of buffered bytes of the in-progress message.
func (a *mediaAssembler) Len() int {
	return len(a.buf)
}
