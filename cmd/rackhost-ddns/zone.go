package main

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/output"
	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/zoneops"
)

func styleFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "style",
		Usage: "output style (" + strings.Join(output.Styles, ", ") + ")",
		Value: output.StyleSimple,
		Action: func(_ *cli.Context, v string) error {
			if !output.ValidStyle(v) {
				return fmt.Errorf("invalid --style %q (want one of %s)", v, strings.Join(output.Styles, ", "))
			}
			return nil
		},
	}
}

func zoneCommand() *cli.Command {
	return &cli.Command{
		Name:  "zone",
		Usage: "Inspect DNS zones",
		Subcommands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List every zone of the account",
				Flags:   []cli.Flag{styleFlag()},
				Action: func(c *cli.Context) error {
					p, err := loggedInProvider(c)
					if err != nil {
						return err
					}
					zones, err := zoneops.ListZones(c.Context, p)
					if err != nil {
						return err
					}
					return output.Zones(c.App.Writer, c.String("style"), zones)
				},
			},
		},
	}
}
