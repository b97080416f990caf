package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"SensorHub/internal/cli/api"
	"SensorHub/internal/config"
	"SensorHub/internal/model"
)

type readingsCmd struct{}

func (readingsCmd) Name() string        { return "readings" }
func (readingsCmd) Description() string { return "Print readings accepted so far" }
func (readingsCmd) Usage() string       { return "readings" }

func (readingsCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	var list []model.EnrichedReading
	endpoint := strings.TrimRight(cfg.ServerURL, "/") + "/readings"
	if err := api.GetJSON(ctx, endpoint, observerToken(), &list); err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(Out, "No readings")
		return nil
	}
	for _, r := range list {
		printReading(r)
	}
	fmt.Fprintf(Out, "Total: %d\n", len(list))
	return nil
}

func printReading(r model.EnrichedReading) {
	data := "-"
	if len(r.SensorData) > 0 {
		if b, err := r.SensorData.Marshal(); err == nil {
			data = string(b)
		}
	}
	fmt.Fprintf(Out, "- %s  %s  %s  %s  %s\n",
		r.ReceivedAt.Local().Format(time.DateTime), r.SensorID, r.Address, data, r.ID)
}

func init() { RegisterCmd(readingsCmd{}) }
