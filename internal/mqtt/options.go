package mqtt

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	// defaultConnectTimeout is the maximum time to wait for the initial connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultTokenTimeout is the maximum time to wait for publish and
	// subscribe acknowledgments.
	defaultTokenTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time in milliseconds to let pending
	// operations drain on disconnect.
	defaultDisconnectQuiesce = 1000

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// reconnect backoff bounds.
	initialReconnectDelay = 1 * time.Second
	maxReconnectDelay     = 60 * time.Second

	// maxQoS is the highest QoS level the protocol defines.
	maxQoS = 2

	// Availability payloads published on the will topic.
	payloadOnline  = "online"
	payloadOffline = "offline"
)

// Options configures the broker connection.
type Options struct {
	Host     string
	Port     int
	Username string
	Password string

	// ClientID identifies this client to the broker. Generated from the
	// process name and a random suffix when empty.
	ClientID string

	// QoS is the default quality of service for convenience publishers.
	QoS byte

	// WillTopic carries the availability state. The broker publishes
	// "offline" there if the client drops without a clean disconnect; the
	// client publishes "online" on every (re)connect. Availability tracking
	// is disabled when empty.
	WillTopic string
}

// buildClientOptions translates Options into paho client options.
func buildClientOptions(opts Options) *pahomqtt.ClientOptions {
	clientID := opts.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("stanmore2-%s", uuid.NewString()[:8])
	}

	popts := pahomqtt.NewClientOptions()
	popts.AddBroker(fmt.Sprintf("tcp://%s:%d", opts.Host, opts.Port))
	popts.SetClientID(clientID)

	if opts.Username != "" {
		popts.SetUsername(opts.Username)
		popts.SetPassword(opts.Password)
	}

	popts.SetCleanSession(true)
	popts.SetAutoReconnect(true)
	popts.SetConnectRetry(true)
	popts.SetConnectRetryInterval(initialReconnectDelay)
	popts.SetMaxReconnectInterval(maxReconnectDelay)
	popts.SetConnectTimeout(defaultConnectTimeout)
	popts.SetKeepAlive(defaultKeepAlive)

	if opts.WillTopic != "" {
		popts.SetWill(opts.WillTopic, payloadOffline, 1, true)
	}

	return popts
}
