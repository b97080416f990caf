// Package weather — поддельный датчик на данных OpenWeather.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL — API текущей погоды OpenWeather.
const DefaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"

// FakeSensor выдаёт показания температуры, давления и влажности для города.
type FakeSensor struct {
	City    string
	APIKey  string
	BaseURL string
	Client  *http.Client
}

// NewFakeSensor создаёт датчик для city.
func NewFakeSensor(city, apiKey string) *FakeSensor {
	return &FakeSensor{
		City:    city,
		APIKey:  apiKey,
		BaseURL: DefaultBaseURL,
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type currentWeather struct {
	Main struct {
		Temp     *float64 `json:"temp"`
		Pressure *float64 `json:"pressure"`
		Humidity *float64 `json:"humidity"`
	} `json:"main"`
}

// Read запрашивает текущую погоду и возвращает её как плоское показание.
func (s *FakeSensor) Read(ctx context.Context) (map[string]any, error) {
	if s.APIKey == "" {
		return nil, errors.New("OPENWEATHER_API_KEY is not set")
	}
	q := url.Values{}
	q.Set("q", s.City)
	q.Set("units", "metric")
	q.Set("APPID", s.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch weather: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("fetch weather: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var cw currentWeather
	if err := json.NewDecoder(resp.Body).Decode(&cw); err != nil {
		return nil, fmt.Errorf("decode weather: %w", err)
	}
	if cw.Main.Temp == nil || cw.Main.Pressure == nil || cw.Main.Humidity == nil {
		return nil, errors.New("weather response lacks temp, pressure or humidity")
	}
	return map[string]any{
		"temp":     *cw.Main.Temp,
		"pressure": *cw.Main.Pressure,
		"humidity": *cw.Main.Humidity,
		"location": s.City,
	}, nil
}
