package capture

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/vshn/guildsnap/capture"
	"github.com/vshn/guildsnap/cmd"
	"github.com/vshn/guildsnap/job"
)

var (
	Command = &cli.Command{
		Name:        "capture",
		Usage:       "Capture guilds into snapshots",
		Description: "Reads settings, roles, channels and emoji of each guild and stores a snapshot",
		Action:      captureMain,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "guild",
				Aliases: []string{"g"},
				Usage:   "ID of a guild to capture, repeatable; defaults to the configured guilds",
			},
			&cli.IntFlag{
				Name:  "keep-last",
				Usage: "prune older snapshots of each captured guild down to this many; 0 keeps all",
			},
		},
	}
)

func captureMain(c *cli.Context) error {
	captureLog := cmd.Logger(c, "capture")
	conf := cmd.AppConfig(c)

	guilds := c.StringSlice("guild")
	if len(guilds) == 0 {
		guilds = conf.Guilds
	}
	if len(guilds) == 0 {
		return fmt.Errorf("no guild given, use --guild or configure guilds")
	}
	keepLast := 0
	if c.IsSet("keep-last") {
		keepLast = c.Int("keep-last")
	}

	client, err := cmd.NewDiscordClient(conf, captureLog)
	if err != nil {
		return err
	}
	st, err := cmd.NewStore(c.Context, conf)
	if err != nil {
		return err
	}

	jc := job.NewConfig(client, st, capture.New(captureLog, nil), cmd.NewStatsHandler(conf, captureLog), captureLog, keepLast)
	if failed := jc.CaptureAll(c.Context, guilds); failed > 0 {
		return fmt.Errorf("%d of %d captures failed", failed, len(guilds))
	}
	return nil
}
