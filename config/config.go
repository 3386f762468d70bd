// Package config defines the floormap configuration file and how it is read and validated.
package config

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/floormap/logging"
	"go.viam.com/floormap/mapping"
	"go.viam.com/floormap/occupancy"
	"go.viam.com/floormap/referenceframe"
)

// Defaults that are not owned by the mapper.
const (
	DefaultWidth       = 102
	DefaultHeight      = 102
	DefaultResolution  = 0.1
	DefaultBaseFrame   = "base"
	DefaultSensorFrame = "sensor"
)

// A Config describes a floor mapping session.
type Config struct {
	ConfigFilePath string `json:"-"`

	Width      int      `json:"width"`
	Height     int      `json:"height"`
	Resolution float64  `json:"resolution"`
	OriginX    *float64 `json:"origin_x,omitempty"`
	OriginY    *float64 `json:"origin_y,omitempty"`

	MaxRange          float64 `json:"max_range"`
	MinSensorRange    float64 `json:"min_sensor_range"`
	MinPoints         int     `json:"min_points"`
	FlatnessThreshold float64 `json:"flatness_threshold"`
	CellType          string  `json:"cell_type"`

	MapFrame         string        `json:"map_frame"`
	BaseFrame        string        `json:"base_frame"`
	SensorFrame      string        `json:"sensor_frame"`
	TransformTimeout time.Duration `json:"transform_timeout"`
	HistoryLength    int           `json:"history_length"`

	LogLevel   string            `json:"log_level,omitempty"`
	Transforms []TransformConfig `json:"transforms,omitempty"`
}

// Default returns the configuration used for any setting a file leaves out.
func Default() *Config {
	return &Config{
		Width:             DefaultWidth,
		Height:            DefaultHeight,
		Resolution:        DefaultResolution,
		MaxRange:          mapping.DefaultMaxRange,
		MinSensorRange:    mapping.DefaultMinSensorRange,
		MinPoints:         mapping.DefaultMinPoints,
		FlatnessThreshold: mapping.DefaultFlatnessThreshold,
		CellType:          string(occupancy.CellTypeLogOdds),
		MapFrame:          referenceframe.World,
		BaseFrame:         DefaultBaseFrame,
		SensorFrame:       DefaultSensorFrame,
		TransformTimeout:  mapping.DefaultTransformTimeout,
		HistoryLength:     referenceframe.DefaultHistoryLength,
	}
}

// Origin returns the lower-left corner of the grid. Unless set, the grid is centered on the
// map frame origin.
func (conf *Config) Origin() (x, y float64) {
	x = -(conf.Resolution * float64(conf.Width)) / 2
	y = -(conf.Resolution * float64(conf.Height)) / 2
	if conf.OriginX != nil {
		x = *conf.OriginX
	}
	if conf.OriginY != nil {
		y = *conf.OriginY
	}
	return x, y
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	if conf.Width <= 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("width must be positive, got %d", conf.Width))
	}
	if conf.Height <= 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("height must be positive, got %d", conf.Height))
	}
	if conf.MapFrame == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "map_frame")
	}
	if conf.BaseFrame == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "base_frame")
	}
	if conf.SensorFrame == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "sensor_frame")
	}
	if conf.LogLevel != "" {
		if _, err := logging.LevelFromString(conf.LogLevel); err != nil {
			return utils.NewConfigValidationError(path, err)
		}
	}
	if conf.HistoryLength < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("history_length must not be negative, got %d", conf.HistoryLength))
	}
	if err := conf.MapperConfig().Validate(); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	for idx, tf := range conf.Transforms {
		if err := tf.Validate(fmt.Sprintf("%s.%s.%d", path, "transforms", idx)); err != nil {
			return err
		}
	}
	if _, err := conf.NewBuffer(); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	return nil
}

// MapperConfig returns the settings the mapper needs.
func (conf *Config) MapperConfig() mapping.Config {
	originX, originY := conf.Origin()
	return mapping.Config{
		Geometry: occupancy.Geometry{
			Width:      conf.Width,
			Height:     conf.Height,
			Resolution: conf.Resolution,
			OriginX:    originX,
			OriginY:    originY,
			Frame:      conf.MapFrame,
		},
		CellType:          occupancy.CellType(conf.CellType),
		MaxRange:          conf.MaxRange,
		MinSensorRange:    conf.MinSensorRange,
		MinPoints:         conf.MinPoints,
		FlatnessThreshold: conf.FlatnessThreshold,
		BaseFrame:         conf.BaseFrame,
		TransformTimeout:  conf.TransformTimeout,
	}
}

// NewBuffer returns a transform buffer holding the configured static transforms.
func (conf *Config) NewBuffer() (*referenceframe.Buffer, error) {
	buf := referenceframe.NewBuffer(conf.HistoryLength)
	for _, tf := range conf.Transforms {
		if err := buf.SetStaticTransform(tf.Parent, tf.Child, tf.Pose()); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// String prints out a table of the configured transforms.
func (conf *Config) String() string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Child", "Parent", "Translation", "Orientation"})
	for i, tf := range conf.Transforms {
		t.AppendRow([]interface{}{
			fmt.Sprintf("%d", i+1),
			tf.Child,
			tf.Parent,
			fmt.Sprintf("X:%.3f, Y:%.3f, Z:%.3f", tf.Translation.X, tf.Translation.Y, tf.Translation.Z),
			fmt.Sprintf("Roll:%.2f, Pitch:%.2f, Yaw:%.2f", tf.Orientation.Roll, tf.Orientation.Pitch, tf.Orientation.Yaw),
		})
	}
	return t.Render()
}
