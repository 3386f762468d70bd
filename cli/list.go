package cli

import (
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"
	"go.viam.com/utils"

	"go.viam.com/floormap/storage"
)

// ListAction prints a table of the stored sessions.
func ListAction(c *cli.Context) error {
	logger, closeLog := newLogger(c)
	defer utils.UncheckedErrorFunc(closeLog)

	store, err := storage.NewStore(c.String(storeFlagDB), logger.Sublogger("storage"))
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(store.Close)

	sessions, err := store.Sessions(c.Context)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		printf(c.App.Writer, "no sessions stored")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(c.App.Writer)
	t.AppendHeader(table.Row{"Session", "Started", "Snapshots", "Last Stamp", "Notes"})
	for _, s := range sessions {
		last := "-"
		if !s.LastStamp.IsZero() {
			last = s.LastStamp.UTC().Format("15:04:05.000")
		}
		t.AppendRow(table.Row{s.ID, humanize.Time(s.Started), strconv.Itoa(s.Snapshots), last, s.Notes})
	}
	t.Render()
	return nil
}
