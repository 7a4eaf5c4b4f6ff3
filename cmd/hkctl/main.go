// Command hkctl inspects and edits the housekeeping schedule, global
// variables and scene history of a housekeepd installation.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli"

	"github.com/dokzlo13/housekeepd/internal/app"
	"github.com/dokzlo13/housekeepd/internal/config"
)

func main() {
	a := cli.App{
		Name:      "hkctl",
		HelpName:  "hkctl",
		Usage:     "Control housekeepd schedules, globals and scenes",
		UsageText: "hkctl [--config FILE] <command> [arguments...]",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:   "config, c",
				Value:  "config.yaml",
				Usage:  "path to the housekeepd configuration file",
				EnvVar: "HOUSEKEEPD_CONFIG",
			},
			cli.BoolFlag{
				Name:  "verbose, v",
				Usage: "log debug output to stderr",
			},
		},
		Before: func(c *cli.Context) error {
			level := zerolog.WarnLevel
			if c.Bool("verbose") {
				level = zerolog.DebugLevel
			}
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
			zerolog.SetGlobalLevel(level)
			return nil
		},
		Commands: []cli.Command{
			scheduleCommand,
			globalCommand,
			historyCommand,
			sceneCommand,
		},
	}

	if err := a.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "hkctl:", err)
		os.Exit(1)
	}
}

// withServices loads the configuration, builds the services without
// starting background loops and closes them when fn returns.
func withServices(c *cli.Context, fn func(ctx context.Context, s *app.Services) error) error {
	cfg, err := config.Load(c.GlobalString("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	s, err := app.NewServices(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(app.SignalContext())
	defer cancel()

	return fn(ctx, s)
}

func usageError(c *cli.Context, format string, args ...any) error {
	_ = cli.ShowCommandHelp(c, c.Command.Name)
	return cli.NewExitError(fmt.Sprintf(format, args...), 2)
}
