package occupancy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-occupancy-map/internal/model"
)

func bands() []model.Threshold {
	return []model.Threshold{
		{ID: 2, UpperBound: 300, Color: "yellow"},
		{ID: 1, UpperBound: 100, Color: "green"},
	}
}

func TestClassify_Scenarios(t *testing.T) {
	tests := []struct {
		name     string
		visitors int
		wantOK   bool
		wantID   int64
	}{
		{"below lowest band", 50, true, 1},
		{"on lowest bound", 100, true, 1},
		{"inside second band", 101, true, 2},
		{"on highest bound", 300, true, 2},
		{"above every band", 301, false, 0},
		{"zero visitors", 0, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			band, ok := Classify(tt.visitors, bands())
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, band.ID)
		})
	}
}

func TestClassify_EmptyThresholds(t *testing.T) {
	for _, v := range []int{0, 1, 1000} {
		_, ok := Classify(v, nil)
		assert.False(t, ok)
	}
}

func TestClassify_DoesNotReorderInput(t *testing.T) {
	in := bands()
	_, _ = Classify(10, in)
	assert.Equal(t, int64(2), in[0].ID)
	assert.Equal(t, int64(1), in[1].ID)
}

func TestClassify_SmallestMatchingBound(t *testing.T) {
	ths := []model.Threshold{
		{ID: 1, UpperBound: 40}, {ID: 2, UpperBound: 7}, {ID: 3, UpperBound: 90},
		{ID: 4, UpperBound: 15}, {ID: 5, UpperBound: 60},
	}
	for v := 0; v <= 100; v++ {
		band, ok := Classify(v, ths)

		var want *model.Threshold
		for i := range ths {
			if ths[i].UpperBound >= v && (want == nil || ths[i].UpperBound < want.UpperBound) {
				want = &ths[i]
			}
		}
		if want == nil {
			assert.False(t, ok, "v=%d", v)
			continue
		}
		require.True(t, ok, "v=%d", v)
		assert.Equal(t, want.ID, band.ID, "v=%d", v)

		again, ok2 := Classify(v, ths)
		assert.Equal(t, band, again)
		assert.Equal(t, ok, ok2)
	}
}

func TestClassify_Monotonic(t *testing.T) {
	ths := []model.Threshold{{ID: 1, UpperBound: 10}, {ID: 2, UpperBound: 20}, {ID: 3, UpperBound: 35}}
	for v1 := 0; v1 <= 40; v1++ {
		for v2 := v1; v2 <= 40; v2++ {
			b1, ok1 := Classify(v1, ths)
			b2, ok2 := Classify(v2, ths)
			if !ok1 {
				assert.False(t, ok2, "v1=%d v2=%d", v1, v2)
				continue
			}
			if ok2 {
				assert.GreaterOrEqual(t, b2.UpperBound, b1.UpperBound)
			}
		}
	}
}

func TestClassify_TiesKeepInputOrder(t *testing.T) {
	ths := []model.Threshold{{ID: 7, UpperBound: 50, Color: "a"}, {ID: 3, UpperBound: 50, Color: "b"}}
	band, ok := Classify(20, ths)
	require.True(t, ok)
	assert.Equal(t, int64(7), band.ID)
}

func TestResolveColor(t *testing.T) {
	green := model.Threshold{UpperBound: 100, Color: "green"}
	assert.Equal(t, "green", ResolveColor("", green, true))
	assert.Equal(t, "#123456", ResolveColor("#123456", green, true))
	assert.Equal(t, "#123456", ResolveColor("#123456", model.Threshold{}, false))
	assert.Equal(t, DefaultColor, ResolveColor("", model.Threshold{}, false))
	assert.Equal(t, DefaultColor, ResolveColor("", model.Threshold{UpperBound: 5}, true))
}

func TestEvaluate(t *testing.T) {
	area := model.AreaStatus{Visitors: 50, Thresholds: bands()}
	res := Evaluate(area)
	assert.True(t, res.Matched)
	assert.Equal(t, "green", res.Color)
	assert.Equal(t, LevelLow, res.Level)

	area.Visitors = 250
	assert.Equal(t, LevelMedium, Evaluate(area).Level)
	assert.Equal(t, "yellow", Evaluate(area).Color)

	area.Visitors = 301
	res = Evaluate(area)
	assert.False(t, res.Matched)
	assert.Equal(t, LevelHigh, res.Level)
	assert.Equal(t, DefaultColor, res.Color)

	area.Highlight = "#ff00ff"
	assert.Equal(t, "#ff00ff", Evaluate(area).Color)

	empty := model.AreaStatus{Visitors: 3}
	res = Evaluate(empty)
	assert.Equal(t, LevelNone, res.Level)
	assert.Equal(t, DefaultColor, res.Color)
}

func TestLevelColor(t *testing.T) {
	assert.Equal(t, LowColor, LevelColor(LevelLow))
	assert.Equal(t, MediumColor, LevelColor(LevelMedium))
	assert.Equal(t, HighColor, LevelColor(LevelHigh))
	assert.Equal(t, DefaultColor, LevelColor(LevelNone))
}
