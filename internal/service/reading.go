package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"

	"SensorHub/internal/model"
)

const maxSensorIDLen = 128

var sensorIDRe = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateSensorID проверяет, что идентификатор датчика безопасен для логов и метаданных.
func ValidateSensorID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: sensor id is required", ErrValidation)
	}
	if len(id) > maxSensorIDLen || !sensorIDRe.MatchString(id) {
		return fmt.Errorf("%w: invalid sensor id %q (allowed: letters, digits, . _ -)", ErrValidation, id)
	}
	return nil
}

// ParseReading разбирает недоверенное тело запроса.
// Допускается непустой JSON-объект со значениями-числами, строками или bool.
func ParseReading(body []byte) (model.Reading, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: body is not a JSON object: %v", ErrValidation, err)
	}
	// лишние данные после объекта
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after JSON object", ErrValidation)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: reading has no fields", ErrValidation)
	}
	for k, v := range raw {
		if k == "" {
			return nil, fmt.Errorf("%w: empty field name", ErrValidation)
		}
		switch v.(type) {
		case json.Number, string, bool:
		default:
			return nil, fmt.Errorf("%w: field %q must be a number, string or bool", ErrValidation, k)
		}
	}
	return model.Reading(raw), nil
}
