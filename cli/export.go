package cli

import (
	"github.com/urfave/cli/v2"
	"go.viam.com/utils"

	"go.viam.com/floormap/storage"
)

// ExportAction writes the newest stored snapshot, optionally limited to one session, as map files.
func ExportAction(c *cli.Context) error {
	logger, closeLog := newLogger(c)
	defer utils.UncheckedErrorFunc(closeLog)

	store, err := storage.NewStore(c.String(storeFlagDB), logger.Sublogger("storage"))
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(store.Close)

	rec, err := store.Latest(c.Context, c.String(storeFlagSession))
	if err != nil {
		return err
	}
	printf(c.App.Writer, "exporting snapshot %d of session %s", rec.ID, rec.Session)
	return writeOutputs(c, rec.Snapshot, nil)
}
