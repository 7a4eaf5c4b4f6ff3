package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli"

	"github.com/dokzlo13/housekeepd/internal/app"
	"github.com/dokzlo13/housekeepd/internal/ledger"
)

var historyCommand = cli.Command{
	Name:  "history",
	Usage: "show recorded housekeeping and scene events, newest first",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "type, t",
			Usage: "only events of this type (task_registered, task_executed, task_failed, schedule_reset, scene_run)",
		},
		cli.StringFlag{
			Name:  "target",
			Usage: "only events for this target or scene",
		},
		cli.DurationFlag{
			Name:  "since, s",
			Usage: "only events newer than this, e.g. 24h",
		},
		cli.IntFlag{
			Name:  "limit, n",
			Value: 50,
			Usage: "maximum number of events",
		},
	},
	Action: history,
}

func history(c *cli.Context) error {
	q := ledger.Query{
		Type:   ledger.EventType(c.String("type")),
		Target: c.String("target"),
		Limit:  c.Int("limit"),
	}
	if since := c.Duration("since"); since > 0 {
		q.Since = time.Now().Add(-since)
	}

	return withServices(c, func(ctx context.Context, s *app.Services) error {
		if s.Ledger == nil {
			return fmt.Errorf("the ledger is disabled in the configuration")
		}
		entries, err := s.Ledger.List(ctx, q)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tEVENT\tTARGET\tRUN\tDETAILS")
		for _, e := range entries {
			details := ""
			if len(e.Payload) > 0 {
				b, _ := json.Marshal(e.Payload)
				details = string(b)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				e.Timestamp.Local().Format(time.RFC3339), e.EventType, e.Target, e.RunID, details)
		}
		return w.Flush()
	})
}
