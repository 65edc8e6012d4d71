package mqtt

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeToken completes immediately with a fixed result.
type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type publishCall struct {
	topic    string
	qos      byte
	retained bool
	payload  interface{}
}

// fakePahoClient records calls in memory.
type fakePahoClient struct {
	mu           sync.Mutex
	connected    bool
	publishes    []publishCall
	subscribed   []string
	unsubscribed []string
	disconnects  int

	subscribeErr error
}

func (f *fakePahoClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakePahoClient) IsConnectionOpen() bool { return f.IsConnected() }

func (f *fakePahoClient) Connect() pahomqtt.Token { return &fakeToken{} }

func (f *fakePahoClient) Disconnect(quiesce uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.disconnects++
}

func (f *fakePahoClient) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishes = append(f.publishes, publishCall{topic, qos, retained, payload})
	return &fakeToken{}
}

func (f *fakePahoClient) Subscribe(topic string, qos byte, callback pahomqtt.MessageHandler) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed = append(f.subscribed, topic)
	return &fakeToken{err: f.subscribeErr}
}

func (f *fakePahoClient) SubscribeMultiple(filters map[string]byte, callback pahomqtt.MessageHandler) pahomqtt.Token {
	return &fakeToken{}
}

func (f *fakePahoClient) Unsubscribe(topics ...string) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = append(f.unsubscribed, topics...)
	return &fakeToken{}
}

func (f *fakePahoClient) AddRoute(topic string, callback pahomqtt.MessageHandler) {}

func (f *fakePahoClient) OptionsReader() pahomqtt.ClientOptionsReader {
	return pahomqtt.ClientOptionsReader{}
}

func (f *fakePahoClient) lastPublish(t *testing.T) publishCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.publishes)
	return f.publishes[len(f.publishes)-1]
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestClient(opts Options) (*Client, *fakePahoClient) {
	fake := &fakePahoClient{connected: true}
	c := &Client{
		client:        fake,
		opts:          opts,
		logger:        testLogger(),
		subscriptions: make(map[string]subscription),
		connected:     true,
	}
	return c, fake
}

func TestPublishString(t *testing.T) {
	c, fake := newTestClient(Options{})

	require.NoError(t, c.PublishString("stanmore2/info/volume", "25", 1, true))

	call := fake.lastPublish(t)
	assert.Equal(t, "stanmore2/info/volume", call.topic)
	assert.Equal(t, byte(1), call.qos)
	assert.True(t, call.retained)
	assert.Equal(t, []byte("25"), call.payload)
}

func TestPublishValidation(t *testing.T) {
	c, _ := newTestClient(Options{})

	assert.ErrorIs(t, c.Publish("", []byte("x"), 0, false), ErrInvalidTopic)
	assert.ErrorIs(t, c.Publish("topic", []byte("x"), 3, false), ErrInvalidQoS)

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()
	assert.ErrorIs(t, c.Publish("topic", []byte("x"), 0, false), ErrNotConnected)
}

func TestSubscribeTracking(t *testing.T) {
	c, fake := newTestClient(Options{})
	handler := func(topic string, payload []byte) error { return nil }

	require.NoError(t, c.Subscribe("a/#", 0, handler))
	require.NoError(t, c.Subscribe("b/#", 1, handler))
	assert.Equal(t, 2, c.SubscriptionCount())
	assert.Equal(t, []string{"a/#", "b/#"}, fake.subscribed)

	require.NoError(t, c.Unsubscribe("a/#"))
	assert.Equal(t, 1, c.SubscriptionCount())
	assert.Equal(t, []string{"a/#"}, fake.unsubscribed)
}

func TestSubscribeFailureDropsTracking(t *testing.T) {
	c, fake := newTestClient(Options{})
	fake.subscribeErr = errors.New("broker refused")

	err := c.Subscribe("a/#", 0, func(topic string, payload []byte) error { return nil })
	assert.ErrorIs(t, err, ErrSubscribeFailed)
	assert.Equal(t, 0, c.SubscriptionCount())
}

func TestSubscribeValidation(t *testing.T) {
	c, _ := newTestClient(Options{})
	handler := func(topic string, payload []byte) error { return nil }

	assert.ErrorIs(t, c.Subscribe("", 0, handler), ErrInvalidTopic)
	assert.ErrorIs(t, c.Subscribe("a/#", 3, handler), ErrInvalidQoS)
	assert.ErrorIs(t, c.Subscribe("a/#", 0, nil), ErrSubscribeFailed)
}

func TestHandleConnectRestoresState(t *testing.T) {
	c, fake := newTestClient(Options{WillTopic: "stanmore2/lwt"})
	c.subscriptions["stanmore2/command/#"] = subscription{
		topic:   "stanmore2/command/#",
		qos:     0,
		handler: func(topic string, payload []byte) error { return nil },
	}

	c.handleConnect()

	assert.Equal(t, []string{"stanmore2/command/#"}, fake.subscribed)
	call := fake.lastPublish(t)
	assert.Equal(t, "stanmore2/lwt", call.topic)
	assert.Equal(t, []byte(payloadOnline), call.payload)
	assert.True(t, call.retained)
}

func TestClosePublishesOffline(t *testing.T) {
	c, fake := newTestClient(Options{WillTopic: "stanmore2/lwt"})

	require.NoError(t, c.Close())

	call := fake.lastPublish(t)
	assert.Equal(t, "stanmore2/lwt", call.topic)
	assert.Equal(t, []byte(payloadOffline), call.payload)
	assert.True(t, call.retained)
	assert.Equal(t, 1, fake.disconnects)
	assert.False(t, c.IsConnected())
}
