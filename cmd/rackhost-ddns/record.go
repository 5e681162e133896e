package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/dns"
	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/output"
	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/zoneops"
)

func recordTypeFlag(required bool) *cli.StringFlag {
	names := make([]string, len(dns.RecordTypes))
	for i, t := range dns.RecordTypes {
		names[i] = string(t)
	}
	return &cli.StringFlag{
		Name:     "type",
		Usage:    "record type (" + strings.Join(names, ", ") + ")",
		Required: required,
		Action: func(_ *cli.Context, v string) error {
			if !dns.ValidRecordType(dns.RecordType(v)) {
				return fmt.Errorf("invalid --type %q (want one of %s)", v, strings.Join(names, ", "))
			}
			return nil
		},
	}
}

func ttlFlag(required bool) *cli.IntFlag {
	choices := make([]string, len(dns.TTLChoices))
	for i, ttl := range dns.TTLChoices {
		choices[i] = strconv.Itoa(ttl)
	}
	return &cli.IntFlag{
		Name:     "ttl",
		Usage:    "time to live in seconds (" + strings.Join(choices, ", ") + ")",
		Required: required,
		Action: func(_ *cli.Context, v int) error {
			if !dns.ValidTTL(v) {
				return fmt.Errorf("invalid --ttl %d (want one of %s)", v, strings.Join(choices, ", "))
			}
			return nil
		},
	}
}

func recordCommand() *cli.Command {
	return &cli.Command{
		Name:  "record",
		Usage: "Manage the records of a zone",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "zone", Aliases: []string{"z"}, Usage: "zone domain, e.g. example.com", Required: true},
		},
		Subcommands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List the records of the zone",
				Flags:   []cli.Flag{styleFlag()},
				Action:  recordList,
			},
			{
				Name:  "create",
				Usage: "Create a record and publish the zone",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "record name relative to the zone, empty for the apex"},
					recordTypeFlag(true),
					ttlFlag(true),
					&cli.StringFlag{Name: "target", Usage: "record target", Required: true},
				},
				Action: recordCreate,
			},
			{
				Name:  "update",
				Usage: "Update a record and publish the zone; omitted fields keep their value",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "record name relative to the zone, empty for the apex"},
					&cli.StringFlag{Name: "newname", Usage: "rename the record"},
					recordTypeFlag(false),
					ttlFlag(false),
					&cli.StringFlag{Name: "target", Usage: "record target"},
				},
				Action: recordUpdate,
			},
			{
				Name:  "delete",
				Usage: "Delete a record and publish the zone",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "record name relative to the zone, empty for the apex", Required: true},
				},
				Action: recordDelete,
			},
		},
	}
}

func recordList(c *cli.Context) error {
	p, err := loggedInProvider(c)
	if err != nil {
		return err
	}
	records, err := zoneops.ListRecords(c.Context, p, c.String("zone"))
	if err != nil {
		return err
	}
	return output.Records(c.App.Writer, c.String("style"), records)
}

func recordCreate(c *cli.Context) error {
	p, err := loggedInProvider(c)
	if err != nil {
		return err
	}
	zone := c.String("zone")
	fields := dns.RecordFields{
		Name:   c.String("name"),
		Type:   dns.RecordType(c.String("type")),
		TTL:    c.Int("ttl"),
		Target: c.String("target"),
	}
	if _, err := zoneops.Create(c.Context, p, zone, fields); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Created %s %s -> %s\n", dns.JoinHostname(fields.Name, zone), fields.Type, fields.Target)
	return nil
}

func recordUpdate(c *cli.Context) error {
	p, err := loggedInProvider(c)
	if err != nil {
		return err
	}
	zone := c.String("zone")
	fields := dns.RecordFields{
		Name:   c.String("newname"),
		Type:   dns.RecordType(c.String("type")),
		TTL:    c.Int("ttl"),
		Target: c.String("target"),
	}
	res, err := zoneops.Update(c.Context, p, zone, c.String("name"), fields)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Updated %s %s %d -> %s\n",
		dns.JoinHostname(res.Fields.Name, zone), res.Fields.Type, res.Fields.TTL, res.Fields.Target)
	return nil
}

func recordDelete(c *cli.Context) error {
	p, err := loggedInProvider(c)
	if err != nil {
		return err
	}
	zone := c.String("zone")
	name := c.String("name")
	if _, err := zoneops.Delete(c.Context, p, zone, name); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Deleted %s\n", dns.JoinHostname(name, zone))
	return nil
}
