package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli"

	"github.com/dokzlo13/housekeepd/internal/app"
	luart "github.com/dokzlo13/housekeepd/internal/lua"
)

var sceneCommand = cli.Command{
	Name:  "scene",
	Usage: "run configured scenes",
	Subcommands: []cli.Command{
		{
			Name:   "list",
			Usage:  "list configured scenes",
			Action: sceneList,
		},
		{
			Name:      "run",
			Usage:     "run a scene once; key=value pairs become the args table",
			ArgsUsage: "<name> [key=value...]",
			Action:    sceneRun,
		},
	},
}

func sceneList(c *cli.Context) error {
	return withServices(c, func(_ context.Context, s *app.Services) error {
		for _, name := range s.Scenes.Runtime.Scenes() {
			fmt.Println(name)
		}
		return nil
	})
}

func sceneRun(c *cli.Context) error {
	if c.NArg() < 1 {
		return usageError(c, "run needs a scene name")
	}
	args, err := parseSceneArgs(c.Args().Tail())
	if err != nil {
		return err
	}

	name := c.Args().First()
	return withServices(c, func(ctx context.Context, s *app.Services) error {
		if !s.Scenes.Runtime.HasScene(name) {
			return fmt.Errorf("unknown scene %q, configured: %v", name, s.Scenes.Runtime.Scenes())
		}
		s.Scenes.StartWorker(ctx)
		if err := s.Scenes.Runtime.RunScene(ctx, name, luart.TriggerCLI, args); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	})
}
