package feed

import (
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNATSRelay_MirrorsPublishedReadings(t *testing.T) {
	s := natsserver.RunRandClientPortServer()
	defer s.Shutdown()

	sub, err := nats.Connect(s.ClientURL())
	require.NoError(t, err)
	defer sub.Close()
	ch := make(chan *nats.Msg, 1)
	_, err = sub.ChanSubscribe("test.readings", ch)
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	relay, err := NewNATSRelay(s.ClientURL(), "test.readings")
	require.NoError(t, err)
	defer relay.Close()

	f := New(zap.NewNop().Sugar(), WithRelay(relay))
	f.Publish(reading("n1"))

	select {
	case m := <-ch:
		assert.Equal(t, "kitchen-1", m.Header.Get(SensorIDHeader))
		var msg Message
		require.NoError(t, json.Unmarshal(m.Data, &msg))
		assert.Equal(t, "n1", msg.Reading.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("no message relayed")
	}
}

func TestNewNATSRelay_Unreachable(t *testing.T) {
	_, err := NewNATSRelay("nats://127.0.0.1:1", "", nats.Timeout(200*time.Millisecond))
	assert.Error(t, err)
}
