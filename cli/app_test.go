package cli

import (
	"bytes"
	"context"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/floormap/logging"
	"go.viam.com/floormap/occupancy"
	"go.viam.com/floormap/pointcloud"
	"go.viam.com/floormap/storage"
	"go.viam.com/floormap/testutils"
)

const testConfig = `
width: 10
height: 10
resolution: 1
origin_x: -5
origin_y: -5
transform_timeout: 50ms
transforms:
  - parent: base
    child: sensor
`

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	fn := filepath.Join(dir, name)
	test.That(t, os.WriteFile(fn, []byte(contents), 0o600), test.ShouldBeNil)
	return fn
}

// scanFromBase is four floor points around (0.15, 0.15) in the map seen from a base at (-2, 0).
func scanFromBase() pointcloud.Vectors {
	cloud := testutils.FloorPatch(0.1, 0.1, 0, 0.1, 2)
	for i := range cloud {
		cloud[i] = cloud[i].Add(r3.Vector{X: 2})
	}
	return cloud
}

func TestReplayExportList(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "floormap.yaml", testConfig)
	trajPath := writeFile(t, dir, "trajectory.yaml", "- {time: 1, x: -2, y: 0, yaw: 0}\n- {time: 0, x: -2, y: 0, yaw: 0}\n")
	scan := testutils.WritePCDFile(t, dir, "scan.pcd", scanFromBase())
	out := filepath.Join(dir, "out")
	db := filepath.Join(dir, "floormap.db")

	var stdout, stderr bytes.Buffer
	app := NewApp(&stdout, &stderr)
	err := app.Run([]string{
		"floormap", "replay",
		"--config", cfgPath, "--trajectory", trajPath,
		"--out", out, "--db", db, "--notes", "hallway",
		scan,
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stdout.String(), test.ShouldContainSubstring, "processed 1 of 1 clouds, 0 dropped")
	test.That(t, stdout.String(), test.ShouldContainSubstring, "cells: 0 occupied, 1 free, 99 unknown")

	want := int8(math.Round(100 / (1 + math.Exp(occupancy.LogOddsIncrement*math.Exp(-2)))))

	meta, err := occupancy.ReadMapMetadata(filepath.Join(out, "map.yaml"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, meta.Image, test.ShouldEqual, "map.png")
	test.That(t, meta.Resolution, test.ShouldEqual, 1.0)
	test.That(t, meta.Origin, test.ShouldResemble, []float64{-5, -5, 0})

	img, err := imaging.Open(filepath.Join(out, "map.png"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Bounds().Dx(), test.ShouldEqual, 10)
	test.That(t, img.Bounds().Dy(), test.ShouldEqual, 10)
	// cell (5, 5) lands on image row 4 once flipped
	gray := color.GrayModel.Convert(img.At(5, 4)).(color.Gray)
	test.That(t, gray.Y, test.ShouldEqual, occupancy.Intensity(want))
	gray = color.GrayModel.Convert(img.At(0, 0)).(color.Gray)
	test.That(t, gray.Y, test.ShouldEqual, occupancy.UnknownIntensity)

	heatmap, err := imaging.Open(filepath.Join(out, "map_heatmap.png"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, heatmap.Bounds().Dx(), test.ShouldEqual, 40)

	store, err := storage.NewStore(db, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	rec, err := store.Latest(context.Background(), "")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rec.Stamp.Equal(time.Unix(0, 0)), test.ShouldBeTrue)
	test.That(t, rec.Snapshot.At(5, 5), test.ShouldEqual, want)
	test.That(t, store.Close(), test.ShouldBeNil)

	stdout.Reset()
	err = app.Run([]string{"floormap", "list", "--db", db})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stdout.String(), test.ShouldContainSubstring, rec.Session)
	test.That(t, stdout.String(), test.ShouldContainSubstring, "hallway")

	exported := filepath.Join(dir, "exported")
	stdout.Reset()
	err = app.Run([]string{"floormap", "export", "--db", db, "--out", exported, "--name", "floor", "--heatmap-scale", "0"})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stdout.String(), test.ShouldContainSubstring, rec.Session)
	_, err = os.Stat(filepath.Join(exported, "floor.png"))
	test.That(t, err, test.ShouldBeNil)
	_, err = os.Stat(filepath.Join(exported, "floor_heatmap.png"))
	test.That(t, os.IsNotExist(err), test.ShouldBeTrue)
	exportedMeta, err := occupancy.ReadMapMetadata(filepath.Join(exported, "floor.yaml"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, exportedMeta.Origin, test.ShouldResemble, meta.Origin)
}

func TestReplayDropsUnconnectedClouds(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "floormap.yaml", testConfig)
	first := testutils.WritePCDFile(t, dir, "a.pcd", scanFromBase())
	second := testutils.WritePCDFile(t, dir, "b.pcd", scanFromBase())
	logFile := filepath.Join(dir, "floormap.log")

	var stdout, stderr bytes.Buffer
	err := NewApp(&stdout, &stderr).Run([]string{
		"floormap", "--log-file", logFile, "replay",
		"--config", cfgPath, "--out", filepath.Join(dir, "out"),
		first, second,
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stdout.String(), test.ShouldContainSubstring, "processed 0 of 2 clouds, 2 dropped")
	test.That(t, stderr.String(), test.ShouldContainSubstring, "dropping batch")

	logged, err := os.ReadFile(logFile)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(logged), test.ShouldContainSubstring, "dropping batch")
}

func TestReplayErrors(t *testing.T) {
	dir := t.TempDir()
	scan := testutils.WritePCDFile(t, dir, "scan.pcd", scanFromBase())
	good := writeFile(t, dir, "good.yaml", testConfig)
	bad := writeFile(t, dir, "bad.yaml", "resolution: 0\n")
	out := filepath.Join(dir, "out")

	for name, args := range map[string][]string{
		"invalid config": {"--config", bad, "--out", out, scan},
		"missing config": {"--config", filepath.Join(dir, "nope.yaml"), "--out", out, scan},
		"no files":       {"--config", good, "--out", out},
		"bad file":       {"--config", good, "--out", out, filepath.Join(dir, "scan.xyz")},
		"bad period":     {"--config", good, "--out", out, "--period", "0s", scan},
	} {
		t.Run(name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := NewApp(&stdout, &stderr).Run(append([]string{"floormap", "replay"}, args...))
			test.That(t, err, test.ShouldNotBeNil)
		})
	}
}

func TestReadTrajectory(t *testing.T) {
	dir := t.TempDir()
	poses, err := ReadTrajectory(writeFile(t, dir, "t.yaml", "- {time: 2, x: 1, y: 2, yaw: 90}\n- {time: 0.5, x: 0, y: 0}\n"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, poses, test.ShouldHaveLength, 2)
	test.That(t, poses[0].Time, test.ShouldEqual, 0.5)
	test.That(t, poses[0].Stamp().Equal(time.Unix(0, 500*int64(time.Millisecond))), test.ShouldBeTrue)

	pt := poses[1].Pose().Point()
	test.That(t, pt.X, test.ShouldAlmostEqual, 1.0)
	test.That(t, pt.Y, test.ShouldAlmostEqual, 2.0)

	_, err = ReadTrajectory(writeFile(t, dir, "empty.yaml", "[]\n"))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = ReadTrajectory(writeFile(t, dir, "nan.yaml", "- {time: .nan}\n"))
	test.That(t, err, test.ShouldNotBeNil)
}
