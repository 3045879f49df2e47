package schedule

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/vshn/guildsnap/capture"
	"github.com/vshn/guildsnap/cmd"
	"github.com/vshn/guildsnap/job"
	"github.com/vshn/guildsnap/monitoring"
	"github.com/vshn/guildsnap/scheduler"
)

var (
	Command = &cli.Command{
		Name:        "schedule",
		Usage:       "Capture the configured guilds periodically",
		Description: "Runs until interrupted; after each capture older snapshots are pruned to keep-last",
		Action:      scheduleMain,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "guild",
				Aliases: []string{"g"},
				Usage:   "ID of a guild to capture, repeatable; defaults to the configured guilds",
			},
		},
	}
)

func scheduleMain(c *cli.Context) error {
	scheduleLog := cmd.Logger(c, "schedule")
	conf := cmd.AppConfig(c)

	guilds := c.StringSlice("guild")
	if len(guilds) == 0 {
		guilds = conf.Guilds
	}
	if len(guilds) == 0 {
		return fmt.Errorf("no guild given, use --guild or configure guilds")
	}
	if conf.Schedule == "" {
		return fmt.Errorf("no schedule configured")
	}

	client, err := cmd.NewDiscordClient(conf, scheduleLog)
	if err != nil {
		return err
	}
	st, err := cmd.NewStore(c.Context, conf)
	if err != nil {
		return err
	}
	jc := job.NewConfig(client, st, capture.New(scheduleLog, nil), cmd.NewStatsHandler(conf, scheduleLog), scheduleLog, conf.KeepLast)

	jobs := make([]scheduler.Job, 0, len(guilds))
	for _, guildID := range guilds {
		guildID := guildID
		jobs = append(jobs, scheduler.Job{
			Name:     "capture/" + guildID,
			Schedule: conf.Schedule,
			Run: func(ctx context.Context) {
				if _, err := jc.CaptureGuild(ctx, guildID); err != nil {
					scheduleLog.Error(err, "scheduled capture failed", "guild", guildID)
				}
			},
		})
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var reg prometheus.Registerer
	if conf.MetricsBindAddress != "" {
		exporter := monitoring.New(conf.MetricsBindAddress, scheduleLog)
		reg = exporter.Registry()
		go func() {
			if err := exporter.Run(ctx); err != nil {
				scheduleLog.Error(err, "metrics endpoint stopped")
			}
		}()
	}

	s := scheduler.New(scheduleLog, reg)
	if err := s.SyncSchedules(jobs); err != nil {
		return err
	}
	scheduleLog.Info("scheduler started", "schedule", conf.Schedule, "guilds", guilds, "keepLast", conf.KeepLast)
	s.Run(ctx)
	return nil
}
