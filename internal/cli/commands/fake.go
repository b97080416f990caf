package commands

import (
	"context"
	"fmt"
	"time"

	"SensorHub/internal/cli/weather"
	"SensorHub/internal/config"
)

// newFakeSensor подменяется в тестах.
var newFakeSensor = func(city, apiKey string) sensorReader {
	return weather.NewFakeSensor(city, apiKey)
}

type sensorReader interface {
	Read(ctx context.Context) (map[string]any, error)
}

type fakeSensorCmd struct{}

func (fakeSensorCmd) Name() string        { return "fake" }
func (fakeSensorCmd) Description() string { return "Post current weather of a city as a reading" }
func (fakeSensorCmd) Usage() string       { return "fake <sensorId> <city> [interval]" }

func (fakeSensorCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return ErrUsage
	}
	sensorID, city := args[0], args[1]
	var interval time.Duration
	if len(args) == 3 {
		d, err := time.ParseDuration(args[2])
		if err != nil || d <= 0 {
			return fmt.Errorf("%w: bad interval %q", ErrUsage, args[2])
		}
		interval = d
	}

	sensor := newFakeSensor(city, cfg.WeatherAPIKey)
	once := func() error {
		reading, err := sensor.Read(ctx)
		if err != nil {
			return err
		}
		return postReading(ctx, cfg, sensorID, reading)
	}

	if interval == 0 {
		return once()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		// ошибка одного цикла не останавливает датчик
		if err := once(); err != nil {
			fmt.Fprintf(Out, "fake: %v\n", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func init() { RegisterCmd(fakeSensorCmd{}) }
