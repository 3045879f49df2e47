package list

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/vshn/guildsnap/cmd"
	"github.com/vshn/guildsnap/store"
)

var (
	Command = &cli.Command{
		Name:   "list",
		Usage:  "List stored snapshots, newest first",
		Action: listMain,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "guild",
				Aliases: []string{"g"},
				Usage:   "only list snapshots of this guild",
			},
			&cli.IntFlag{
				Name:  "limit",
				Value: 10,
				Usage: "maximum number of snapshots to print; 0 prints all",
			},
		},
	}
)

func listMain(c *cli.Context) error {
	st, err := cmd.NewStore(c.Context, cmd.AppConfig(c))
	if err != nil {
		return err
	}
	infos, err := st.List(c.Context, c.String("guild"))
	if err != nil {
		return err
	}
	if limit := c.Int("limit"); limit > 0 && len(infos) > limit {
		infos = infos[:limit]
	}
	printInfos(c.App.Writer, infos, time.Now())
	return nil
}

func printInfos(w io.Writer, infos []store.Info, now time.Time) {
	if len(infos) == 0 {
		fmt.Fprintln(w, "no snapshots found")
		return
	}
	fmt.Fprintf(w, "%-32s %-20s %-16s %s\n", "ID", "GUILD", "CREATED", "SIZE")
	for _, i := range infos {
		fmt.Fprintf(w, "%-32s %-20s %-16s %s\n", i.ID, i.GuildID, humanize.RelTime(i.Created, now, "ago", "from now"), humanize.Bytes(uint64(i.Size)))
	}
}
