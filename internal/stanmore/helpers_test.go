package stanmore

import (
	"io"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// mediaFieldChunk builds a single metadata field frame for the given field
// identifier and value.
func mediaFieldChunk(field byte, value string) []byte {
	chunk := []byte{0x00, 0x00, 0x00, field, 0x00, 0x6A, 0x00, byte(len(value))}
	return append(chunk, value...)
}
