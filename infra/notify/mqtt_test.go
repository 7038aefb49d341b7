package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type fakeClient struct {
	topic      string
	body       []byte
	publishErr error
}

func (c *fakeClient) IsConnected() bool      { return true }
func (c *fakeClient) Connect() paho.Token    { return &fakeToken{} }
func (c *fakeClient) Disconnect(uint)        {}
func (c *fakeClient) Publish(topic string, _ byte, _ bool, p interface{}) paho.Token {
	c.topic = topic
	c.body = p.([]byte)
	return &fakeToken{err: c.publishErr}
}

func newTestNotifier(t *testing.T, cli *fakeClient) *MQTTNotifier {
	t.Helper()
	orig := newMQTTClient
	newMQTTClient = func(*paho.ClientOptions) pahoClient { return cli }
	t.Cleanup(func() { newMQTTClient = orig })

	n, err := NewMQTTNotifier(Config{Broker: "tcp://localhost:1883"})
	require.NoError(t, err)
	return n
}

func TestNotifyPublishesToVolunteerTopic(t *testing.T) {
	cli := &fakeClient{}
	n := newTestNotifier(t, cli)

	err := n.Notify(context.Background(), "v1", "New task", "Medical help needed", map[string]string{"assignment_id": "a1"})
	require.NoError(t, err)
	assert.Equal(t, "seva/notify/v1", cli.topic)

	var p payload
	require.NoError(t, json.Unmarshal(cli.body, &p))
	assert.Equal(t, "New task", p.Title)
	assert.Equal(t, "a1", p.Data["assignment_id"])
	assert.False(t, p.SentAt.IsZero())
}

func TestNotifySurfacesBrokerError(t *testing.T) {
	cli := &fakeClient{publishErr: errors.New("broker gone")}
	n := newTestNotifier(t, cli)

	err := n.Notify(context.Background(), "v1", "t", "b", nil)
	assert.ErrorContains(t, err, "broker gone")
}

func TestNewMQTTNotifierRequiresBroker(t *testing.T) {
	_, err := NewMQTTNotifier(Config{})
	assert.Error(t, err)
}
