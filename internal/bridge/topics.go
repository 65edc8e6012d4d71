package bridge

import "strings"

// Topics derives the bus addresses the bridge speaks from a configurable
// prefix. Commands arrive under <prefix>/command/..., state goes out under
// <prefix>/info/..., and availability lives at <prefix>/lwt.
type Topics struct {
	Prefix string
}

// Command returns the inbound command topic for the given suffix.
func (t Topics) Command(suffix string) string {
	return t.Prefix + "/command/" + suffix
}

// CommandWildcard returns the subscription pattern that covers every
// command topic.
func (t Topics) CommandWildcard() string {
	return t.Prefix + "/command/#"
}

// Info returns the outbound state topic for the given suffix.
func (t Topics) Info(suffix string) string {
	return t.Prefix + "/info/" + suffix
}

// Availability returns the will topic carrying online/offline state.
func (t Topics) Availability() string {
	return t.Prefix + "/lwt"
}

// CommandSuffix strips the command prefix from a full topic. The second
// return value is false when the topic lies outside the command space.
func (t Topics) CommandSuffix(topic string) (string, bool) {
	return strings.CutPrefix(topic, t.Prefix+"/command/")
}
