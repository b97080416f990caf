package service

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSensorID(t *testing.T) {
	for _, ok := range []string{"kitchen", "living-room.1", "A_B"} {
		assert.NoError(t, ValidateSensorID(ok), ok)
	}
	for _, bad := range []string{"", "kit chen", "a/b", "x\n", strings.Repeat("a", 129)} {
		assert.ErrorIs(t, ValidateSensorID(bad), ErrValidation, bad)
	}
}

func TestParseReading(t *testing.T) {
	r, err := ParseReading([]byte(`{"temperature":21.5,"humidity":40,"room":"kitchen","open":false}`))
	require.NoError(t, err)
	assert.Equal(t, json.Number("21.5"), r["temperature"])
	assert.Equal(t, json.Number("40"), r["humidity"])
	assert.Equal(t, "kitchen", r["room"])
	assert.Equal(t, false, r["open"])

	// числа не теряют точность при повторной сериализации
	b, err := r.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{"temperature":21.5,"humidity":40,"room":"kitchen","open":false}`, string(b))
}

func TestParseReading_Rejects(t *testing.T) {
	cases := map[string]string{
		"empty body":    ``,
		"not json":      `temperature=21`,
		"array":         `[1,2,3]`,
		"null":          `null`,
		"empty object":  `{}`,
		"nested object": `{"a":{"b":1}}`,
		"array value":   `{"a":[1]}`,
		"null value":    `{"a":null}`,
		"trailing data": `{"a":1} {"b":2}`,
		"empty key":     `{"":1}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseReading([]byte(body))
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}
