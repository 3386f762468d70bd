package occupancy

import "math"

const (
	// RunningAverageStep is how far one unit of weight moves the probability.
	RunningAverageStep = 0.1
	// RunningAverageMin and RunningAverageMax keep the probability off 0 and 1.
	RunningAverageMin = 0.001
	RunningAverageMax = 0.999
)

// RunningAverageCell keeps occupancy directly as a probability that steps toward 0 or 1.
type RunningAverageCell struct {
	prob float64
}

// NewRunningAverageCell returns an unknown cell at probability 0.5.
func NewRunningAverageCell() *RunningAverageCell {
	return &RunningAverageCell{prob: 0.5}
}

// IsOccupied returns true if the probability is above one half.
func (c *RunningAverageCell) IsOccupied() bool {
	return c.prob > 0.5
}

// IsFree returns true if the probability is below one half.
func (c *RunningAverageCell) IsFree() bool {
	return c.prob < 0.5
}

// OccupancyProbability returns the stored probability.
func (c *RunningAverageCell) OccupancyProbability() float64 {
	return c.prob
}

// ReinforceOccupied steps the probability up by weight*RunningAverageStep.
func (c *RunningAverageCell) ReinforceOccupied(weight float64) {
	if !usableWeight(weight) {
		return
	}
	c.prob = math.Min(c.prob+weight*RunningAverageStep, RunningAverageMax)
}

// ReinforceFree steps the probability down by weight*RunningAverageStep.
func (c *RunningAverageCell) ReinforceFree(weight float64) {
	if !usableWeight(weight) {
		return
	}
	c.prob = math.Max(c.prob-weight*RunningAverageStep, RunningAverageMin)
}
