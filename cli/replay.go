package cli

import (
	"context"
	"io"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/geo/r2"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.viam.com/utils"
	"golang.org/x/sync/errgroup"

	"go.viam.com/floormap/config"
	"go.viam.com/floormap/logging"
	"go.viam.com/floormap/mapping"
	"go.viam.com/floormap/occupancy"
	"go.viam.com/floormap/pointcloud"
	"go.viam.com/floormap/referenceframe"
	"go.viam.com/floormap/storage"
)

const defaultPeriod = 100 * time.Millisecond

var (
	defaultParallelLoads = runtime.NumCPU()

	// replayEpoch is time zero for replayed clouds and trajectories.
	replayEpoch = time.Unix(0, 0)
)

// ReplayAction feeds recorded clouds through a mapper in order and writes the resulting map.
func ReplayAction(c *cli.Context) error {
	logger, closeLog := newLogger(c)
	defer utils.UncheckedErrorFunc(closeLog)

	conf, err := config.Read(c.String(replayFlagConfig))
	if err != nil {
		return err
	}
	if conf.LogLevel != "" && !c.Bool(generalFlagDebug) {
		level, err := logging.LevelFromString(conf.LogLevel)
		if err != nil {
			return err
		}
		logger.SetLevel(level)
	}
	logger.Debugf("static transforms:\n%s", conf)

	files := c.Args().Slice()
	if len(files) == 0 {
		return errors.New("no point cloud files given")
	}
	period := c.Duration(replayFlagPeriod)
	if period <= 0 {
		return errors.Errorf("--%s must be positive", replayFlagPeriod)
	}

	var trajectory []TrajectoryPose
	if fn := c.String(replayFlagTrajectory); fn != "" {
		if trajectory, err = ReadTrajectory(fn); err != nil {
			return err
		}
	}

	buf, err := conf.NewBuffer()
	if err != nil {
		return err
	}
	mapper, err := mapping.NewMapper(conf.MapperConfig(), buf, logger.Sublogger("mapper"))
	if err != nil {
		return err
	}
	if trajectory == nil {
		if err := buf.CanTransform(conf.MapFrame, conf.SensorFrame, time.Time{}); err != nil {
			logger.Warnw("sensor is not connected to the map and no trajectory was given", "error", err)
		}
	}

	clouds, err := loadClouds(c.Context, files, c.Int(replayFlagParallel), logger)
	if err != nil {
		return err
	}

	r := &replay{
		conf:       conf,
		buf:        buf,
		mapper:     mapper,
		trajectory: trajectory,
		period:     period,
		logger:     logger,
	}
	if err := r.run(c.Context, clouds); err != nil {
		return err
	}

	snap := mapper.Snapshot()
	if err := writeOutputs(c, snap, r.path()); err != nil {
		return err
	}
	if path := c.String(storeFlagDB); path != "" {
		if err := storeSnapshot(c.Context, path, c.String(replayFlagNotes), r.lastStamp, snap, c.App.Writer, logger); err != nil {
			return err
		}
	}
	r.printSummary(c.App.Writer, len(clouds))
	return nil
}

// loadClouds reads files concurrently, keeping their order.
func loadClouds(ctx context.Context, files []string, parallel int, logger logging.Logger) ([]pointcloud.Vectors, error) {
	clouds := make([]pointcloud.Vectors, len(files))
	g, ctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, fn := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			cloud, err := pointcloud.NewFromFile(fn, logger)
			if err != nil {
				return err
			}
			clouds[i] = cloud
			logger.Debugw("loaded cloud", "file", fn, "points", len(cloud))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return clouds, nil
}

type replay struct {
	conf       *config.Config
	buf        *referenceframe.Buffer
	mapper     *mapping.Mapper
	trajectory []TrajectoryPose
	nextPose   int
	period     time.Duration
	logger     logging.Logger

	updateMillis []float64
	lastStamp    time.Time
}

func (r *replay) run(ctx context.Context, clouds []pointcloud.Vectors) error {
	for i, cloud := range clouds {
		if err := ctx.Err(); err != nil {
			return err
		}
		stamp := replayEpoch.Add(time.Duration(i) * r.period)
		if err := r.feedTrajectory(stamp); err != nil {
			return err
		}

		start := time.Now()
		_, err := r.mapper.ProcessCloud(ctx, cloud, r.conf.SensorFrame, stamp)
		if errors.Is(err, mapping.ErrBatchDropped) {
			continue
		}
		if err != nil {
			return err
		}
		r.updateMillis = append(r.updateMillis, float64(time.Since(start).Microseconds())/1000)
		r.lastStamp = stamp
	}
	return ctx.Err()
}

// feedTrajectory publishes base poses up to and including the first one at or after stamp, as
// a live odometry source would have by the time the cloud arrived.
func (r *replay) feedTrajectory(stamp time.Time) error {
	for r.nextPose < len(r.trajectory) {
		if r.nextPose > 0 && !r.trajectory[r.nextPose-1].Stamp().Before(stamp) {
			return nil
		}
		tp := r.trajectory[r.nextPose]
		if err := r.buf.SetTransform(r.conf.MapFrame, r.conf.BaseFrame, tp.Stamp(), tp.Pose()); err != nil {
			return err
		}
		r.nextPose++
	}
	return nil
}

// path returns the base positions published so far.
func (r *replay) path() []r2.Point {
	path := make([]r2.Point, 0, r.nextPose)
	for _, tp := range r.trajectory[:r.nextPose] {
		path = append(path, r2.Point{X: tp.X, Y: tp.Y})
	}
	return path
}

func (r *replay) printSummary(w io.Writer, total int) {
	st := r.mapper.Stats()
	printf(w, "processed %d of %d clouds, %d dropped", st.BatchesProcessed, total, st.BatchesDropped)
	printf(w, "%s of %s points accepted, %s cells fitted (%d occupied and %d free updates)",
		humanize.Comma(int64(st.Accepted)), humanize.Comma(int64(st.Points)),
		humanize.Comma(int64(st.CellsFitted)), st.OccupiedUpdates, st.FreeUpdates)
	if len(r.updateMillis) > 0 {
		mean, _ := stats.Mean(r.updateMillis)
		p95, _ := stats.Percentile(r.updateMillis, 95)
		maxMillis, _ := stats.Max(r.updateMillis)
		printf(w, "update time: mean %.2fms, p95 %.2fms, max %.2fms", mean, p95, maxMillis)
	}
	occupied, free, unknown := r.mapper.Counts()
	printf(w, "cells: %d occupied, %d free, %d unknown", occupied, free, unknown)
}

func storeSnapshot(
	ctx context.Context,
	path, notes string,
	stamp time.Time,
	snap occupancy.Snapshot,
	w io.Writer,
	logger logging.Logger,
) error {
	store, err := storage.NewStore(path, logger.Sublogger("storage"))
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(store.Close)

	session, err := store.NewSession(ctx, notes)
	if err != nil {
		return err
	}
	if stamp.IsZero() {
		stamp = replayEpoch
	}
	id, err := store.InsertSnapshot(ctx, session, stamp, snap)
	if err != nil {
		return err
	}
	printf(w, "stored snapshot %d in session %s", id, session)
	return nil
}
