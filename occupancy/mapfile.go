package occupancy

import (
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Thresholds written to map metadata, matching the usual map_server defaults.
const (
	DefaultOccupiedThresh = 0.65
	DefaultFreeThresh     = 0.196
)

// MapMetadata is the YAML description that accompanies a map image.
type MapMetadata struct {
	Image          string    `yaml:"image"`
	Resolution     float64   `yaml:"resolution"`
	Origin         []float64 `yaml:"origin"`
	Negate         int       `yaml:"negate"`
	OccupiedThresh float64   `yaml:"occupied_thresh"`
	FreeThresh     float64   `yaml:"free_thresh"`
}

// WriteMapFiles writes <name>.png with the grayscale rendering of s and <name>.yaml
// describing it into dir, returning both paths.
func WriteMapFiles(dir, name string, s Snapshot) (imagePath, metaPath string, err error) {
	if err := s.Validate(); err != nil {
		return "", "", err
	}
	if name == "" {
		return "", "", errors.New("map name must not be empty")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", "", err
	}

	imagePath = filepath.Join(dir, name+".png")
	if err := imaging.Save(s.Gray(), imagePath); err != nil {
		return "", "", errors.Wrapf(err, "writing map image %q", imagePath)
	}

	meta := MapMetadata{
		Image:          filepath.Base(imagePath),
		Resolution:     s.Resolution,
		Origin:         []float64{s.OriginX, s.OriginY, 0},
		OccupiedThresh: DefaultOccupiedThresh,
		FreeThresh:     DefaultFreeThresh,
	}
	out, err := yaml.Marshal(&meta)
	if err != nil {
		return "", "", err
	}
	metaPath = filepath.Join(dir, name+".yaml")
	if err := os.WriteFile(metaPath, out, 0o600); err != nil {
		return "", "", errors.Wrapf(err, "writing map metadata %q", metaPath)
	}
	return imagePath, metaPath, nil
}

// ReadMapMetadata reads map metadata written by WriteMapFiles.
func ReadMapMetadata(path string) (MapMetadata, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return MapMetadata{}, err
	}
	var meta MapMetadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return MapMetadata{}, errors.Wrapf(err, "parsing map metadata %q", path)
	}
	if meta.Image == "" {
		return MapMetadata{}, errors.Errorf("map metadata %q names no image", path)
	}
	if len(meta.Origin) != 3 {
		return MapMetadata{}, errors.Errorf("map metadata %q origin must have 3 values, got %d", path, len(meta.Origin))
	}
	return meta, nil
}
