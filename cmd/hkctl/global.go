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

var globalCommand = cli.Command{
	Name:  "global",
	Usage: "read and write global variables",
	Subcommands: []cli.Command{
		{
			Name:      "get",
			Usage:     "print a variable",
			ArgsUsage: "<name>",
			Action:    globalGet,
		},
		{
			Name:      "set",
			Usage:     "update a declared variable",
			ArgsUsage: "<name> <value>",
			Action:    globalSet,
		},
		{
			Name:      "declare",
			Usage:     "create a variable if it does not exist",
			ArgsUsage: "<name> <value>",
			Action:    globalDeclare,
		},
		{
			Name:   "list",
			Usage:  "list all variables",
			Action: globalList,
		},
	},
}

func globalGet(c *cli.Context) error {
	if c.NArg() != 1 {
		return usageError(c, "get needs a name")
	}
	return withServices(c, func(ctx context.Context, s *app.Services) error {
		v, err := s.Globals.Get(ctx, c.Args().First())
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil
	})
}

func globalSet(c *cli.Context) error {
	if c.NArg() != 2 {
		return usageError(c, "set needs a name and a value")
	}
	return withServices(c, func(ctx context.Context, s *app.Services) error {
		return s.Globals.Set(ctx, c.Args().Get(0), c.Args().Get(1))
	})
}

func globalDeclare(c *cli.Context) error {
	if c.NArg() != 2 {
		return usageError(c, "declare needs a name and a value")
	}
	return withServices(c, func(ctx context.Context, s *app.Services) error {
		created, err := s.Globals.Declare(ctx, c.Args().Get(0), c.Args().Get(1))
		if err != nil {
			return err
		}
		if !created {
			fmt.Println("already declared, value unchanged")
		}
		return nil
	})
}

func globalList(c *cli.Context) error {
	return withServices(c, func(ctx context.Context, s *app.Services) error {
		vars, err := s.Globals.List(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tUPDATED\tVALUE")
		for _, v := range vars {
			fmt.Fprintf(w, "%s\t%s\t%s\n", v.Name, v.UpdatedAt.Format(time.RFC3339), v.Value)
		}
		return w.Flush()
	})
}
