package occupancy

import "math"

const (
	// LogOddsIncrement is added or subtracted per unit of weight.
	LogOddsIncrement = 0.5
	// LogOddsBound is the magnitude at which a log-odds cell saturates.
	LogOddsBound = 30.0
	// LogOddsThreshold is the magnitude a cell must exceed to be occupied or free.
	LogOddsThreshold = 1e-6
)

// LogOddsCell keeps occupancy as a log-odds value clamped to [-LogOddsBound, LogOddsBound].
// The zero value is an unknown cell.
type LogOddsCell struct {
	logOdds float64
}

// LogOdds returns the raw log-odds value.
func (c *LogOddsCell) LogOdds() float64 {
	return c.logOdds
}

// IsOccupied returns true if the evidence leans occupied.
func (c *LogOddsCell) IsOccupied() bool {
	return c.logOdds > LogOddsThreshold
}

// IsFree returns true if the evidence leans free.
func (c *LogOddsCell) IsFree() bool {
	return c.logOdds < -LogOddsThreshold
}

// OccupancyProbability is the logistic function of the log-odds value.
func (c *LogOddsCell) OccupancyProbability() float64 {
	return 1 / (1 + math.Exp(-c.logOdds))
}

// ReinforceOccupied moves the log-odds up by weight*LogOddsIncrement.
func (c *LogOddsCell) ReinforceOccupied(weight float64) {
	if !usableWeight(weight) {
		return
	}
	c.logOdds = math.Min(c.logOdds+weight*LogOddsIncrement, LogOddsBound)
}

// ReinforceFree moves the log-odds down by weight*LogOddsIncrement.
func (c *LogOddsCell) ReinforceFree(weight float64) {
	if !usableWeight(weight) {
		return
	}
	c.logOdds = math.Max(c.logOdds-weight*LogOddsIncrement, -LogOddsBound)
}
