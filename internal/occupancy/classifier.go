// Package occupancy classifies visitor counts into the threshold bands of an
// area and resolves the colour an area is drawn with.
package occupancy

import (
	"sort"

	"github.com/iliyamo/venue-occupancy-map/internal/model"
)

// Colours used when no band colour applies and for the legend.
const (
	DefaultColor = "#e5e7eb"
	LowColor     = "#4ade80"
	MediumColor  = "#facc15"
	HighColor    = "#ef4444"
)

// Level is the qualitative band a count falls into.
type Level string

const (
	LevelNone   Level = "none"
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Result is the classification of one area.
type Result struct {
	Band    model.Threshold
	Matched bool
	Level   Level
	Color   string
}

// Sorted returns a copy of thresholds ordered by ascending upper bound.
// Thresholds sharing a bound keep their input order.
func Sorted(thresholds []model.Threshold) []model.Threshold {
	out := make([]model.Threshold, len(thresholds))
	copy(out, thresholds)
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpperBound < out[j].UpperBound })
	return out
}

// Classify returns the threshold with the smallest upper bound that is still
// >= visitors.  The boolean is false when thresholds is empty or the count
// exceeds every bound.
func Classify(visitors int, thresholds []model.Threshold) (model.Threshold, bool) {
	band, _, ok := classify(visitors, thresholds)
	return band, ok
}

func classify(visitors int, thresholds []model.Threshold) (model.Threshold, int, bool) {
	for i, t := range Sorted(thresholds) {
		if t.UpperBound >= visitors {
			return t, i, true
		}
	}
	return model.Threshold{}, -1, false
}

// ResolveColor picks the fill colour: the highlight override, then the
// matched band colour, then DefaultColor.
func ResolveColor(highlight string, band model.Threshold, matched bool) string {
	if highlight != "" {
		return highlight
	}
	if matched && band.Color != "" {
		return band.Color
	}
	return DefaultColor
}

// Evaluate classifies an area's current visitor count.
func Evaluate(a model.AreaStatus) Result {
	band, rank, ok := classify(a.Visitors, a.Thresholds)
	return Result{
		Band:    band,
		Matched: ok,
		Level:   levelFor(rank, ok, len(a.Thresholds)),
		Color:   ResolveColor(a.Highlight, band, ok),
	}
}

// levelFor maps the rank of the matched band onto the legend levels: the
// lowest band is "low", every other finite band "medium" and a count above
// all bands "high".
func levelFor(rank int, matched bool, n int) Level {
	switch {
	case n == 0:
		return LevelNone
	case !matched:
		return LevelHigh
	case rank == 0:
		return LevelLow
	default:
		return LevelMedium
	}
}

// LevelColor returns the legend colour of a level.
func LevelColor(l Level) string {
	switch l {
	case LevelLow:
		return LowColor
	case LevelMedium:
		return MediumColor
	case LevelHigh:
		return HighColor
	default:
		return DefaultColor
	}
}
