package restore

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/urfave/cli/v2"

	"github.com/vshn/guildsnap/cmd"
	"github.com/vshn/guildsnap/fetch"
	"github.com/vshn/guildsnap/restore"
	"github.com/vshn/guildsnap/snapshot"
	"github.com/vshn/guildsnap/store"
)

var (
	Command = &cli.Command{
		Name:  "restore",
		Usage: "Restore a snapshot onto a guild",
		Description: "Deletes every channel and every deletable role of the target guild, " +
			"then recreates settings, roles, channels and emoji from the snapshot. This cannot be undone.",
		Action: restoreMain,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "guild",
				Aliases:  []string{"g"},
				Required: true,
				Usage:    "ID of the target guild",
			},
			&cli.StringFlag{
				Name:  "snapshot",
				Usage: "ID of the snapshot to restore; defaults to the latest snapshot of --from-guild",
			},
			&cli.StringFlag{
				Name:  "from-guild",
				Usage: "guild whose latest snapshot is restored when --snapshot is not set; defaults to --guild",
			},
			&cli.PathFlag{
				Name:  "file",
				Usage: "restore a snapshot archive or JSON document from disk instead of the store",
			},
			&cli.BoolFlag{
				Name:  "yes",
				Usage: "confirm the destructive restore",
			},
		},
	}
)

func restoreMain(c *cli.Context) error {
	restoreLog := cmd.Logger(c, "restore")
	conf := cmd.AppConfig(c)
	target := c.String("guild")

	snap, err := loadSnapshot(c)
	if err != nil {
		return err
	}
	restoreLog.Info("all channels and deletable roles of the target guild will be deleted",
		"target", target, "source", snap.Metadata.GuildName, "snapshot", snap.Metadata.Timestamp,
		"roles", len(snap.Roles), "channels", len(snap.Channels), "emojis", len(snap.Emojis))
	if !c.Bool("yes") {
		return fmt.Errorf("refusing to restore without --yes")
	}

	client, err := cmd.NewDiscordClient(conf, restoreLog)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	restorer := restore.New(restore.Options{
		Log:       restoreLog,
		Fetcher:   fetch.New(conf.FetchTimeout, restoreLog),
		Intervals: conf.Intervals(),
	})
	report, err := restorer.Restore(ctx, client, target, snap)
	printReport(c, restoreLog, report)
	cmd.NewStatsHandler(conf, restoreLog).Send(context.WithoutCancel(ctx), report)
	return err
}

func loadSnapshot(c *cli.Context) (*snapshot.Snapshot, error) {
	if path := c.Path("file"); path != "" {
		return store.ReadFile(path)
	}

	st, err := cmd.NewStore(c.Context, cmd.AppConfig(c))
	if err != nil {
		return nil, err
	}
	if id := c.String("snapshot"); id != "" {
		return st.Load(c.Context, id)
	}

	source := c.String("from-guild")
	if source == "" {
		source = c.String("guild")
	}
	infos, err := st.List(c.Context, source)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("%w: no snapshot of guild %s", store.ErrNotFound, source)
	}
	return st.Load(c.Context, infos[0].ID)
}

func printReport(c *cli.Context, log logr.Logger, report *restore.Report) {
	for _, failure := range report.Failures() {
		log.Info("not restored", "phase", failure.Phase, "kind", failure.Kind, "name", failure.Name, "error", failure.Error)
	}
	fmt.Fprintf(c.App.Writer, "restore %s reached %s\n%s\n", report.RunID, report.Reached, report.Summary())
}
