package mapping

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/floormap/logging"
	"go.viam.com/floormap/occupancy"
	"go.viam.com/floormap/pointcloud"
	"go.viam.com/floormap/referenceframe"
)

// Defaults for the mapper.
const (
	DefaultMaxRange          = 4.5
	DefaultMinSensorRange    = 0.01
	DefaultMinPoints         = 2
	DefaultFlatnessThreshold = 0.8
	DefaultTransformTimeout  = time.Second
)

// Config describes a Mapper.
type Config struct {
	Geometry occupancy.Geometry
	CellType occupancy.CellType

	MaxRange          float64
	MinSensorRange    float64
	MinPoints         int
	FlatnessThreshold float64

	// Geometry.Frame is the map frame.
	BaseFrame        string
	TransformTimeout time.Duration
}

// Validate returns an error describing the first unusable setting.
func (cfg Config) Validate() error {
	if err := cfg.Geometry.Validate(); err != nil {
		return err
	}
	if err := cfg.CellType.Validate(); err != nil && cfg.CellType != "" {
		return err
	}
	if !(cfg.MaxRange > 0) {
		return errors.Errorf("max range must be positive, got %v", cfg.MaxRange)
	}
	if !(cfg.MinSensorRange >= 0) || cfg.MinSensorRange >= cfg.MaxRange {
		return errors.Errorf("min sensor range must be in [0, %v), got %v", cfg.MaxRange, cfg.MinSensorRange)
	}
	if cfg.MinPoints < pointcloud.MinPlanePoints-1 {
		return errors.Errorf("min points must be at least %d, got %d", pointcloud.MinPlanePoints-1, cfg.MinPoints)
	}
	if !(cfg.FlatnessThreshold > 0 && cfg.FlatnessThreshold <= 1) {
		return errors.Errorf("flatness threshold must be in (0, 1], got %v", cfg.FlatnessThreshold)
	}
	if cfg.Geometry.Frame == "" || cfg.BaseFrame == "" {
		return errors.New("map and base frames must be named")
	}
	if cfg.TransformTimeout <= 0 {
		return errors.Errorf("transform timeout must be positive, got %s", cfg.TransformTimeout)
	}
	return nil
}

// Stats accumulates over the life of a Mapper.
type Stats struct {
	BatchesProcessed int
	BatchesDropped   int
	UpdateStats
}

func (s *Stats) add(u UpdateStats) {
	s.BatchesProcessed++
	s.Points += u.Points
	s.NonFinite += u.NonFinite
	s.SelfReturns += u.SelfReturns
	s.OutOfRange += u.OutOfRange
	s.OutsideGrid += u.OutsideGrid
	s.Accepted += u.Accepted
	s.CellsFitted += u.CellsFitted
	s.FitFailures += u.FitFailures
	s.OccupiedUpdates += u.OccupiedUpdates
	s.FreeUpdates += u.FreeUpdates
}

// A Mapper owns a grid and applies point batches to it one at a time.
type Mapper struct {
	mu          sync.Mutex
	cfg         Config
	grid        *occupancy.Grid
	transformer referenceframe.Transformer
	binner      Binner
	updater     Updater
	stats       Stats
	logger      logging.Logger
}

// NewMapper returns a Mapper with an all unknown grid. Transforms for ProcessCloud are
// resolved through transformer.
func NewMapper(cfg Config, transformer referenceframe.Transformer, logger logging.Logger) (*Mapper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid mapper config")
	}
	grid, err := occupancy.NewGrid(cfg.Geometry, cfg.CellType)
	if err != nil {
		return nil, err
	}
	return &Mapper{
		cfg:         cfg,
		grid:        grid,
		transformer: transformer,
		binner: Binner{
			Geometry:       cfg.Geometry,
			MinSensorRange: cfg.MinSensorRange,
			MaxRange:       cfg.MaxRange,
		},
		updater: Updater{
			MinPoints:         cfg.MinPoints,
			FlatnessThreshold: cfg.FlatnessThreshold,
		},
		logger: logger,
	}, nil
}

// Geometry returns the layout of the map.
func (m *Mapper) Geometry() occupancy.Geometry {
	return m.cfg.Geometry
}

// ProcessCloud applies a cloud captured in frame at stamp. It waits up to the configured
// timeout for the transforms from frame to the base and map frames. If they do not arrive
// the batch is dropped and logged, the grid is left alone, and the returned error matches
// ErrBatchDropped.
func (m *Mapper) ProcessCloud(ctx context.Context, cloud pointcloud.Vectors, frame string, stamp time.Time) (UpdateStats, error) {
	obs, err := m.observe(ctx, cloud, frame, stamp)
	if err != nil {
		m.logger.Warnw("dropping batch", "stamp", stamp, "frame", frame, "error", err)
		m.mu.Lock()
		m.stats.BatchesDropped++
		m.mu.Unlock()
		return UpdateStats{}, newDroppedError(err)
	}
	return m.Process(obs)
}

func (m *Mapper) observe(ctx context.Context, cloud pointcloud.Vectors, frame string, stamp time.Time) (Observation, error) {
	mapFrame, baseFrame := m.cfg.Geometry.Frame, m.cfg.BaseFrame
	for _, dst := range []string{baseFrame, mapFrame} {
		if err := m.transformer.WaitForTransform(ctx, dst, frame, stamp, m.cfg.TransformTimeout); err != nil {
			return Observation{}, err
		}
	}
	sensorInBase, err := m.transformer.LookupTransform(baseFrame, frame, stamp)
	if err != nil {
		return Observation{}, err
	}
	sensorInMap, err := m.transformer.LookupTransform(mapFrame, frame, stamp)
	if err != nil {
		return Observation{}, err
	}
	mapInBase, err := m.transformer.LookupTransform(baseFrame, mapFrame, stamp)
	if err != nil {
		return Observation{}, err
	}
	return Observation{
		Stamp:     stamp,
		Frame:     frame,
		Sensor:    cloud,
		Base:      cloud.Transform(sensorInBase),
		World:     cloud.Transform(sensorInMap),
		MapInBase: mapInBase,
	}, nil
}

// Process applies an observation whose points are already in all three frames.
func (m *Mapper) Process(obs Observation) (UpdateStats, error) {
	if err := obs.Validate(); err != nil {
		return UpdateStats{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	buckets, binStats := m.binner.Bin(obs)
	stats := m.updater.Update(m.grid, buckets, obs.World, obs.MapInBase)
	stats.BinStats = binStats
	m.stats.add(stats)

	m.logger.Debugw("processed batch",
		"stamp", obs.Stamp,
		"points", stats.Points,
		"accepted", stats.Accepted,
		"cells_fitted", stats.CellsFitted,
		"occupied", stats.OccupiedUpdates,
		"free", stats.FreeUpdates,
	)
	return stats, nil
}

// Snapshot exports the current grid.
func (m *Mapper) Snapshot() occupancy.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.grid.Snapshot()
}

// Stats returns the totals so far.
func (m *Mapper) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// CellProbability returns the occupancy probability of the cell covering (x, y) in the map
// frame, and false if the point is off the map.
func (m *Mapper) CellProbability(x, y float64) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.grid.IndexOf(x, y)
	if !ok {
		return math.NaN(), false
	}
	return m.grid.Cell(idx).OccupancyProbability(), true
}

// Counts returns how many cells are occupied, free and unknown.
func (m *Mapper) Counts() (occupied, free, unknown int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.grid.Counts()
}
