package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"SensorHub/internal/cli/api"
	"SensorHub/internal/config"
)

type ackResponse struct {
	Message      string          `json:"message"`
	SensorID     string          `json:"sensorId"`
	SensorData   json.RawMessage `json:"sensorData"`
	ErrorMessage string          `json:"error_message"`
	Err          string          `json:"err"`
}

type postCmd struct{}

func (postCmd) Name() string        { return "post" }
func (postCmd) Description() string { return "Send one reading to the server" }
func (postCmd) Usage() string       { return "post <sensorId> <field=value>..." }

func (postCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) < 2 {
		return ErrUsage
	}
	reading, err := parseFields(args[1:])
	if err != nil {
		return err
	}
	return postReading(ctx, cfg, args[0], reading)
}

// parseFields разбирает field=value. Числа и true/false сохраняют тип, остальное идёт строками.
func parseFields(fields []string) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		k, v, ok := strings.Cut(f, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: bad field %q, want field=value", ErrUsage, f)
		}
		switch {
		case v == "true" || v == "false":
			out[k] = v == "true"
		default:
			if _, err := strconv.ParseFloat(v, 64); err == nil {
				out[k] = json.Number(v)
			} else {
				out[k] = v
			}
		}
	}
	return out, nil
}

func postReading(ctx context.Context, cfg *config.Config, sensorID string, reading map[string]any) error {
	endpoint := strings.TrimRight(cfg.ServerURL, "/") + "/sensor-reading/" + url.PathEscape(sensorID)
	resp, body, err := api.PostJSON(ctx, endpoint, reading, "")
	if err != nil {
		return err
	}
	var ack ackResponse
	_ = json.Unmarshal(body, &ack)
	if resp.StatusCode != http.StatusOK {
		if ack.ErrorMessage != "" {
			return fmt.Errorf("server status %d: %s: %s", resp.StatusCode, ack.ErrorMessage, ack.Err)
		}
		return fmt.Errorf("server status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	fmt.Fprintf(Out, "%s: %s %s\n", ack.Message, ack.SensorID, string(ack.SensorData))
	return nil
}

func init() { RegisterCmd(postCmd{}) }
