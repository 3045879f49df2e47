package main

import (
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/urfave/cli/v2"

	"github.com/vshn/guildsnap/cfg"
	"github.com/vshn/guildsnap/cmd"
	"github.com/vshn/guildsnap/cmd/capture"
	"github.com/vshn/guildsnap/cmd/list"
	"github.com/vshn/guildsnap/cmd/restore"
	"github.com/vshn/guildsnap/cmd/schedule"
)

// Strings are populated by Goreleaser
var (
	version = "snapshot"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	err := app().Run(os.Args)
	if err != nil {
		log.Fatalf("guildsnap: %v", err)
	}
}

func mainAction(c *cli.Context) error {
	logger, err := cmd.NewLogger(c.Bool("debug"))
	if err != nil {
		return fmt.Errorf("cannot initialize logger: %w", err)
	}
	cmd.SetAppLogger(c, logger)

	setupLog := cmd.Logger(c, "guildsnap")
	setupLog.WithValues(
		"version", version,
		"date", date,
		"commit", commit,
		"go_os", runtime.GOOS,
		"go_arch", runtime.GOARCH,
		"go_version", runtime.Version(),
	).V(1).Info("Starting guildsnap…")

	conf, err := cfg.Load(c.Path("config"))
	if err != nil {
		return err
	}
	applyFlags(c, conf)
	if err := conf.ValidateSyntax(); err != nil {
		setupLog.Error(err, "settings invalid")
		return err
	}
	cmd.SetAppConfig(c, conf)
	return nil
}

// applyFlags overrides loaded settings with explicitly given global flags.
func applyFlags(c *cli.Context, conf *cfg.Configuration) {
	for flag, target := range map[string]*string{
		"token":       &conf.Token,
		"store":       &conf.Store,
		"backup-dir":  &conf.BackupDir,
		"s3-endpoint": &conf.S3Endpoint,
		"prom-url":    &conf.PromURL,
		"webhook-url": &conf.WebhookURL,
		"schedule":    &conf.Schedule,

		"metrics-bind-address": &conf.MetricsBindAddress,
	} {
		if c.IsSet(flag) {
			*target = c.String(flag)
		}
	}
	if c.IsSet("keep-last") {
		conf.KeepLast = c.Int("keep-last")
	}
}

func app() *cli.App {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Printf("version=%s revision=%s date=%s\n", c.App.Version, commit, date)
	}

	return &cli.App{
		Name:                 "guildsnap",
		Usage:                "Snapshot and restore the structure of Discord guilds",
		Version:              version,
		EnableBashCompletion: true,
		Before:               mainAction,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "debug",
				Aliases:     []string{"verbose", "d"},
				Usage:       "sets the log level to debug",
				EnvVars:     []string{"GUILDSNAP_DEBUG"},
				DefaultText: "false",
			},
			&cli.PathFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file; environment variables prefixed with " + cfg.EnvPrefix + " override it",
			},
			&cli.StringFlag{Name: "token", Usage: "Discord bot token"},
			&cli.StringFlag{Name: "store", Usage: "snapshot store, 'local' or 's3'"},
			&cli.StringFlag{Name: "backup-dir", Usage: "directory of the local store"},
			&cli.StringFlag{Name: "s3-endpoint", Usage: "S3 endpoint in the form http(s)://host/bucket[/prefix]"},
			&cli.StringFlag{Name: "prom-url", Usage: "Prometheus Pushgateway URL"},
			&cli.StringFlag{Name: "webhook-url", Usage: "URL receiving JSON reports"},
			&cli.StringFlag{Name: "schedule", Usage: "cron expression for the schedule command"},
			&cli.StringFlag{Name: "metrics-bind-address", Usage: "address of the /metrics endpoint of the schedule command, empty disables it"},
			&cli.IntFlag{Name: "keep-last", Usage: "snapshots to keep per guild in the schedule command"},
		},
		Commands: []*cli.Command{
			capture.Command,
			restore.Command,
			list.Command,
			schedule.Command,
		},
	}
}
