package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/config"
	"github.com/yuriy-kovalchuk/rackhost-ddns/internal/dns"
	_ "github.com/yuriy-kovalchuk/rackhost-ddns/internal/dns/providers"
)

var Version = "dev"

func main() {
	if err := run(os.Args, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	return newApp(stdout).Run(args)
}

func newApp(stdout io.Writer) *cli.App {
	return &cli.App{
		Name:    "rackhost-ddns",
		Usage:   "Manage Rackhost DNS records and serve dynamic DNS callbacks",
		Version: Version,
		Writer:  stdout,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug", Usage: "enable development logging with verbose output", EnvVars: []string{"DDNS_DEBUG"}},
		},
		Before: func(c *cli.Context) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("loading .env: %w", err)
			}
			opts := zap.Options{Development: c.Bool("debug")}
			ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))
			return nil
		},
		Commands: []*cli.Command{
			zoneCommand(),
			recordCommand(),
			serveCommand(),
		},
	}
}

// loggedInProvider creates a provider from the environment and logs it in.
func loggedInProvider(c *cli.Context) (dns.Provider, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("unable to load config: %w", err)
	}
	if err := cfg.ValidateProvider(); err != nil {
		return nil, err
	}

	name := cfg.Provider.Provider
	p, err := dns.NewProvider(name, ctrl.Log.WithName("dns-"+name), cfg.ProviderSettings())
	if err != nil {
		return nil, fmt.Errorf("unable to create DNS provider: %w", err)
	}
	if err := p.Login(c.Context); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return p, nil
}
