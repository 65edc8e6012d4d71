package bridge

import "errors"

// ErrPayloadDecode is returned when an inbound command payload cannot be
// decoded or fails validation. The offending message is dropped; the
// device is not touched.
var ErrPayloadDecode = errors.New("bridge: malformed command payload")
