package model

import (
	"encoding/json"
	"time"
)

// Reading — набор именованных значений одного датчика (temperature, pressure, ...).
// Числа хранятся как json.Number, чтобы сериализация не меняла их запись.
type Reading map[string]any

// Marshal сериализует показание детерминированно (ключи map кодируются по порядку).
func (r Reading) Marshal() ([]byte, error) {
	return json.Marshal(map[string]any(r))
}

// Clone возвращает поверхностную копию показания.
func (r Reading) Clone() Reading {
	if r == nil {
		return nil
	}
	out := make(Reading, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// EnrichedReading — показание после успешного прохождения конвейера.
// После создания не изменяется.
type EnrichedReading struct {
	ID         string    `json:"id"`
	SensorID   string    `json:"sensorId"`
	SensorData Reading   `json:"sensorData,omitempty"`
	Address    string    `json:"address"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Redacted returns a copy without plaintext fields.
func (e EnrichedReading) Redacted() EnrichedReading {
	e.SensorData = nil
	return e
}
