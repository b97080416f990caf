package feed

import (
	"fmt"

	"github.com/nats-io/nats.go"

	"SensorHub/internal/model"
)

// SensorIDHeader — заголовок NATS с идентификатором датчика.
const SensorIDHeader = "Sensor-Id"

// NATSRelay зеркалирует опубликованные записи в subject NATS.
type NATSRelay struct {
	nc      *nats.Conn
	subject string
}

// NewNATSRelay подключается к NATS.
func NewNATSRelay(url, subject string, opts ...nats.Option) (*NATSRelay, error) {
	if subject == "" {
		subject = "sensorhub.readings"
	}
	opts = append([]nats.Option{nats.Name("sensorhub")}, opts...)
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats %s: %w", url, err)
	}
	return &NATSRelay{nc: nc, subject: subject}, nil
}

// Relay публикует сообщение с заголовком датчика.
func (n *NATSRelay) Relay(r model.EnrichedReading, msg []byte) error {
	m := nats.NewMsg(n.subject)
	m.Header.Set(SensorIDHeader, r.SensorID)
	m.Data = msg
	return n.nc.PublishMsg(m)
}

// Close дожидается отправки буфера и закрывает соединение.
func (n *NATSRelay) Close() error {
	return n.nc.Drain()
}
