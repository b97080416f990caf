package commands

import (
	"context"
	"fmt"
	"strconv"

	"SensorHub/internal/cli/api"
	"SensorHub/internal/config"
	"SensorHub/internal/feed"
)

type watchCmd struct{}

func (watchCmd) Name() string        { return "watch" }
func (watchCmd) Description() string { return "Subscribe to the live feed (stop after n readings)" }
func (watchCmd) Usage() string       { return "watch [n]" }

func (watchCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) > 1 {
		return ErrUsage
	}
	limit := 0
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("%w: bad count %q", ErrUsage, args[0])
		}
		limit = n
	}

	conn, err := api.DialFeed(ctx, cfg.ServerURL, observerToken())
	if err != nil {
		return err
	}
	defer conn.Close()

	// ReadJSON не смотрит на ctx; закрытие соединения его прерывает
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	seen := 0
	for {
		var msg feed.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("feed closed: %w", err)
		}
		switch msg.Type {
		case feed.MessageSnapshot:
			fmt.Fprintf(Out, "Snapshot: %d readings\n", len(msg.Readings))
			for _, r := range msg.Readings {
				printReading(r)
			}
		case feed.MessageReading:
			if msg.Reading == nil {
				continue
			}
			printReading(*msg.Reading)
			seen++
			if limit > 0 && seen >= limit {
				return nil
			}
		}
	}
}

func init() { RegisterCmd(watchCmd{}) }
