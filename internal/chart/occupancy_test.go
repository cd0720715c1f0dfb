package chart

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-occupancy-map/internal/model"
)

func TestOccupancy_SeriesFollowSnapshot(t *testing.T) {
	areas := []model.AreaStatus{
		{Area: model.Area{ID: 1, Name: "A3", Capacity: 300}, Visitors: 50,
			Thresholds: []model.Threshold{{UpperBound: 100, Color: "#4ade80"}}},
		{Area: model.Area{ID: 2, Name: "A4", Capacity: 200, Highlight: "#123456"}, Visitors: 10},
	}
	bar := Occupancy(areas)
	require.Len(t, bar.MultiSeries, 2)

	var buf bytes.Buffer
	require.NoError(t, RenderOccupancy(&buf, areas))
	out := buf.String()
	assert.Contains(t, out, "Besucher pro Bereich")
	assert.Contains(t, out, "A3")
	assert.Contains(t, out, "#4ade80")
	assert.Contains(t, out, "#123456")
}
