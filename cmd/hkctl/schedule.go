package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli"

	"github.com/dokzlo13/housekeepd/internal/app"
)

var scheduleCommand = cli.Command{
	Name:  "schedule",
	Usage: "inspect and edit pending housekeeping tasks",
	Subcommands: []cli.Command{
		{
			Name:   "show",
			Usage:  "list pending tasks, soonest first",
			Action: scheduleShow,
		},
		{
			Name:      "register",
			Usage:     "schedule a command for one or more targets",
			ArgsUsage: "<targets> <delay> <cmd> [arg1 [arg2]]",
			Description: "targets is a comma separated list of device ids and variable names,\n" +
				"   delay is a Go duration such as 90s or 2h.\n\n" +
				"   hkctl schedule register 4,5 10m setValue 30",
			Action: scheduleRegister,
		},
		{
			Name:   "run",
			Usage:  "execute every task that is due now",
			Action: scheduleRun,
		},
		{
			Name:      "cancel",
			Usage:     "drop the pending tasks of the given targets",
			ArgsUsage: "<targets>",
			Action:    scheduleCancel,
		},
		{
			Name:   "reset",
			Usage:  "discard every pending task",
			Action: scheduleReset,
		},
	},
}

func scheduleShow(c *cli.Context) error {
	return withServices(c, func(ctx context.Context, s *app.Services) error {
		sched, err := s.Keeper.Pending(ctx)
		if err != nil {
			return err
		}
		if len(sched) == 0 {
			fmt.Println("no pending tasks")
			return nil
		}

		now := time.Now()
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TARGET\tDUE\tIN\tCMD\tARGS")
		for _, e := range sched.Entries() {
			args := ""
			if a := e.Task.Command().Args(); len(a) > 0 {
				args = fmt.Sprint(a...)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				e.Target,
				e.Task.DueAt().Format(time.RFC3339),
				e.Task.DueAt().Sub(now).Round(time.Second),
				e.Task.Cmd,
				args,
			)
		}
		return w.Flush()
	})
}

func scheduleRegister(c *cli.Context) error {
	if c.NArg() < 3 {
		return usageError(c, "register needs targets, delay and cmd")
	}
	targets, err := parseTargetList(c.Args().Get(0))
	if err != nil {
		return err
	}
	delay, err := time.ParseDuration(c.Args().Get(1))
	if err != nil {
		return fmt.Errorf("invalid delay: %w", err)
	}
	cmd, err := parseCommand(c.Args().Get(2), c.Args()[3:])
	if err != nil {
		return err
	}

	return withServices(c, func(ctx context.Context, s *app.Services) error {
		if err := s.Keeper.Register(ctx, targets, delay, cmd); err != nil {
			return err
		}
		fmt.Printf("registered %s for %d target(s), due %s\n",
			cmd.Name(), len(targets), time.Now().Add(delay).Format(time.RFC3339))
		return nil
	})
}

func scheduleRun(c *cli.Context) error {
	return withServices(c, func(ctx context.Context, s *app.Services) error {
		report, err := s.Housekeeping.RunDue(ctx)
		if err != nil {
			return err
		}
		if report.Reset {
			fmt.Println("schedule was corrupted and has been cleared")
			return nil
		}
		fmt.Printf("run %s: executed %d, failed %d, remaining %d\n",
			report.RunID, report.Executed, report.Failed, report.Remaining)
		return nil
	})
}

func scheduleCancel(c *cli.Context) error {
	if c.NArg() != 1 {
		return usageError(c, "cancel needs a target list")
	}
	targets, err := parseTargetList(c.Args().First())
	if err != nil {
		return err
	}

	return withServices(c, func(ctx context.Context, s *app.Services) error {
		removed, err := s.Keeper.Cancel(ctx, targets)
		if err != nil {
			return err
		}
		fmt.Printf("cancelled %d task(s)\n", removed)
		return nil
	})
}

func scheduleReset(c *cli.Context) error {
	return withServices(c, func(ctx context.Context, s *app.Services) error {
		if err := s.ResetSchedule(ctx); err != nil {
			return err
		}
		fmt.Println("schedule cleared")
		return nil
	})
}
