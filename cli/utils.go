package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/floormap/logging"
	"go.viam.com/floormap/occupancy"
)

// printf prints a message with no prefix.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// newLogger returns the command's logger writing to the app's error writer, and to a rotated
// file if requested. The returned func closes the file.
func newLogger(c *cli.Context) (logging.Logger, func() error) {
	logger := logging.NewBlankLogger("floormap")
	logger.SetLevel(logging.INFO)
	if c.Bool(generalFlagDebug) {
		logger.SetLevel(logging.DEBUG)
	}
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))

	closer := func() error { return nil }
	if fn := c.String(generalFlagLogFile); fn != "" {
		fileAppender := logging.NewFileAppender(logging.FileAppenderConfig{Filename: fn, MaxBackups: 3})
		logger.AddAppender(fileAppender)
		closer = fileAppender.Close
	}
	return logger, closer
}

// writeOutputs writes the map image and metadata for snap and, unless disabled, an upscaled
// heatmap with path drawn over it.
func writeOutputs(c *cli.Context, snap occupancy.Snapshot, path []r2.Point) error {
	dir, name := c.String(outputFlagDir), c.String(outputFlagName)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return errors.Wrapf(err, "creating output directory %q", dir)
	}
	imagePath, metaPath, err := occupancy.WriteMapFiles(dir, name, snap)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "wrote %s", imagePath)
	printf(c.App.Writer, "wrote %s", metaPath)

	scale := c.Int(outputFlagHeatmapScale)
	if scale < 0 {
		return errors.Errorf("--%s must not be negative", outputFlagHeatmapScale)
	}
	if scale == 0 {
		return nil
	}
	heatmapPath := filepath.Join(dir, name+"_heatmap.png")
	heatmap := occupancy.DrawPath(occupancy.Upscale(snap.Heatmap(), scale), snap.Geometry, scale, path)
	if err := imaging.Save(heatmap, heatmapPath); err != nil {
		return errors.Wrap(err, "writing heatmap")
	}
	printf(c.App.Writer, "wrote %s", heatmapPath)
	return nil
}
