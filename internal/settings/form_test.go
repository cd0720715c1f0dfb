package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-occupancy-map/internal/model"
	"github.com/iliyamo/venue-occupancy-map/internal/repository"
)

// fakeWriter keeps one area and its thresholds in memory and records the
// calls it receives.
type fakeWriter struct {
	area       model.Area
	thresholds map[int64]model.Threshold
	nextID     int64
	calls      []string
	failCreate int // fail the n-th create (1-based), 0 = never
	creates    int
}

func newFakeWriter(a model.Area, ths ...model.Threshold) *fakeWriter {
	w := &fakeWriter{area: a, thresholds: map[int64]model.Threshold{}, nextID: 100}
	for _, t := range ths {
		w.thresholds[t.ID] = t
	}
	return w
}

func (w *fakeWriter) UpdateArea(_ context.Context, id uint64, p model.AreaPatch) (*model.Area, error) {
	w.calls = append(w.calls, "update-area")
	if id != w.area.ID {
		return nil, repository.ErrAreaNotFound
	}
	w.area = p.Apply(w.area)
	a := w.area
	return &a, nil
}

func (w *fakeWriter) CreateThreshold(_ context.Context, t *model.Threshold) error {
	w.calls = append(w.calls, "create")
	w.creates++
	if w.creates == w.failCreate {
		return errors.New("connection reset")
	}
	if w.boundTaken(t.UpperBound, 0) {
		return repository.ErrDuplicateBound
	}
	w.nextID++
	t.ID = w.nextID
	w.thresholds[t.ID] = *t
	return nil
}

func (w *fakeWriter) UpdateThreshold(_ context.Context, id int64, p model.ThresholdPatch) (*model.Threshold, error) {
	w.calls = append(w.calls, "update-threshold")
	cur, ok := w.thresholds[id]
	if !ok {
		return nil, repository.ErrThresholdNotFound
	}
	next := p.Apply(cur)
	if w.boundTaken(next.UpperBound, id) {
		return nil, repository.ErrDuplicateBound
	}
	w.thresholds[id] = next
	return &next, nil
}

// boundTaken mirrors the unique (area_id, upper_bound) key.
func (w *fakeWriter) boundTaken(bound int, self int64) bool {
	for id, t := range w.thresholds {
		if id != self && t.UpperBound == bound {
			return true
		}
	}
	return false
}

func (w *fakeWriter) DeleteThreshold(_ context.Context, id int64) error {
	w.calls = append(w.calls, "delete")
	delete(w.thresholds, id)
	return nil
}

func hall() model.Area {
	return model.Area{ID: 1, Name: "A3", X: 10, Y: 20, Width: 100, Height: 50, Capacity: 300}
}

func bands() []model.Threshold {
	return []model.Threshold{
		{ID: 1, AreaID: 1, UpperBound: 100, Color: "#4ade80"},
		{ID: 2, AreaID: 1, UpperBound: 300, Color: "#facc15"},
	}
}

func TestParseIntOrZero(t *testing.T) {
	cases := map[string]int{
		"42":    42,
		" 7 ":   7,
		"12px":  12,
		"3.9":   3,
		"-15":   -15,
		"+4":    4,
		"":      0,
		"abc":   0,
		"-":     0,
		"0050":  50,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseIntOrZero(in), "input %q", in)
	}
}

func TestSet(t *testing.T) {
	f := NewForm(hall(), nil)
	require.NoError(t, f.Set("width", "240"))
	require.NoError(t, f.Set("X", "oops"))
	require.NoError(t, f.Set("highlight", "  "))
	require.NoError(t, f.Set("name", "A3 north"))
	assert.ErrorIs(t, f.Set("id", "9"), ErrUnknownField)

	a := f.Area()
	assert.Equal(t, 240, a.Width)
	assert.Equal(t, 0, a.X)
	assert.Equal(t, "", a.Highlight)
	assert.Equal(t, "A3 north", a.Name)
	assert.Equal(t, hall(), f.Original())
}

func TestDiff_OnlyChangedFields(t *testing.T) {
	f := NewForm(hall(), bands())
	assert.False(t, f.HasChanges())

	require.NoError(t, f.Set("capacity", "350"))
	require.NoError(t, f.Set("name", "A3"))
	cs := f.Diff()
	require.NotNil(t, cs.Area.Capacity)
	assert.Equal(t, 350, *cs.Area.Capacity)
	assert.Nil(t, cs.Area.Name)
	assert.Nil(t, cs.Area.Width)
	assert.True(t, f.HasChanges())
}

func TestThresholdEdits_Validation(t *testing.T) {
	f := NewForm(hall(), bands())

	_, err := f.AddThreshold(0, "#fff")
	assert.ErrorIs(t, err, repository.ErrInvalidBound)
	_, err = f.AddThreshold(100, "#fff")
	assert.ErrorIs(t, err, repository.ErrDuplicateBound)

	id, err := f.AddThreshold(500, "")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), id)
	id2, err := f.AddThreshold(600, "#ef4444")
	require.NoError(t, err)
	assert.Equal(t, int64(-2), id2)

	assert.ErrorIs(t, f.EditThreshold(1, 300, ""), repository.ErrDuplicateBound)
	require.NoError(t, f.EditThreshold(1, 100, "#22c55e"))
	assert.ErrorIs(t, f.EditThreshold(99, 10, ""), repository.ErrThresholdNotFound)
	assert.ErrorIs(t, f.DeleteThreshold(99), repository.ErrThresholdNotFound)

	ths := f.Thresholds()
	require.Len(t, ths, 4)
	assert.Equal(t, NewThresholdColor, ths[2].Color)

	cs := f.Diff()
	assert.Len(t, cs.Added, 2)
	require.Len(t, cs.Changed, 1)
	assert.Equal(t, "#22c55e", cs.Changed[0].Color)
	assert.Empty(t, cs.Removed)
}

func TestSave_NoChangesIsNoop(t *testing.T) {
	w := newFakeWriter(hall(), bands()...)
	f := NewForm(hall(), bands())
	cs, err := f.Save(context.Background(), w)
	require.NoError(t, err)
	assert.True(t, cs.Empty())
	assert.Empty(t, w.calls)
}

func TestSave_ReplacesPlaceholderIDs(t *testing.T) {
	w := newFakeWriter(hall(), bands()...)
	f := NewForm(hall(), bands())

	placeholder, err := f.AddThreshold(500, "#ef4444")
	require.NoError(t, err)
	assert.Less(t, placeholder, int64(0))

	cs, err := f.Save(context.Background(), w)
	require.NoError(t, err)
	require.Len(t, cs.Added, 1)
	assert.Equal(t, int64(101), cs.Added[0].ID)

	ths := f.Thresholds()
	require.Len(t, ths, 3)
	assert.Equal(t, int64(101), ths[2].ID)
	assert.Equal(t, uint64(1), ths[2].AreaID)
	for _, th := range ths {
		assert.Greater(t, th.ID, int64(0))
	}
	assert.False(t, f.HasChanges())
}

func TestSave_OrderAndRemoval(t *testing.T) {
	w := newFakeWriter(hall(), bands()...)
	f := NewForm(hall(), bands())
	require.NoError(t, f.Set("height", "60"))
	require.NoError(t, f.DeleteThreshold(2))
	require.NoError(t, f.EditThreshold(1, 150, ""))
	_, err := f.AddThreshold(300, "#facc15")
	require.NoError(t, err)

	_, err = f.Save(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, []string{"update-area", "delete", "update-threshold", "create"}, w.calls)
	assert.Equal(t, 60, w.area.Height)
	assert.NotContains(t, w.thresholds, int64(2))
	assert.Equal(t, 150, w.thresholds[1].UpperBound)
}

func TestSave_RejectsDegenerateGeometryBeforeWriting(t *testing.T) {
	w := newFakeWriter(hall())
	f := NewForm(hall(), nil)
	require.NoError(t, f.Set("width", "0"))

	_, err := f.Save(context.Background(), w)
	assert.ErrorIs(t, err, repository.ErrInvalidGeometry)
	assert.Empty(t, w.calls)
	assert.True(t, f.HasChanges())
}

func TestSave_PartialFailureKeepsPersistedIDs(t *testing.T) {
	w := newFakeWriter(hall())
	w.failCreate = 2
	f := NewForm(hall(), nil)
	first, _ := f.AddThreshold(100, "#4ade80")
	second, _ := f.AddThreshold(200, "#facc15")

	_, err := f.Save(context.Background(), w)
	require.Error(t, err)
	assert.True(t, f.HasChanges())

	cs := f.Diff()
	require.Len(t, cs.Added, 1)
	assert.Equal(t, second, cs.Added[0].ID)
	for _, th := range f.Thresholds() {
		assert.NotEqual(t, first, th.ID)
	}

	_, err = f.Save(context.Background(), w)
	require.NoError(t, err)
	assert.Len(t, w.thresholds, 2)
	assert.False(t, f.HasChanges())
}

func TestSave_RoundTripReflectsExactlyTheDiff(t *testing.T) {
	w := newFakeWriter(hall())
	f := NewForm(hall(), nil)
	require.NoError(t, f.Set("name", "A3 north"))
	require.NoError(t, f.Set("highlight", "#123456"))

	_, err := f.Save(context.Background(), w)
	require.NoError(t, err)

	want := hall()
	want.Name = "A3 north"
	want.Highlight = "#123456"
	assert.Equal(t, want, w.area)
	assert.Equal(t, want, f.Original())
}

func TestEditThresholds_ChecksTheResultingList(t *testing.T) {
	f := NewForm(hall(), bands())

	require.NoError(t, f.EditThresholds([]BandEdit{{ID: 1, UpperBound: 300}, {ID: 2, UpperBound: 400}}))
	ths := f.Thresholds()
	assert.Equal(t, 300, ths[0].UpperBound)
	assert.Equal(t, 400, ths[1].UpperBound)

	err := f.EditThresholds([]BandEdit{{ID: 1, UpperBound: 500}, {ID: 2, UpperBound: 500}})
	assert.ErrorIs(t, err, repository.ErrDuplicateBound)
	assert.ErrorIs(t, f.EditThresholds([]BandEdit{{ID: 1, UpperBound: 0}}), repository.ErrInvalidBound)
	assert.ErrorIs(t, f.EditThresholds([]BandEdit{{ID: 7, UpperBound: 10}}), repository.ErrThresholdNotFound)
	assert.Equal(t, ths, f.Thresholds(), "a rejected batch leaves the form unchanged")
}

func TestSave_BoundsMovingPastEachOther(t *testing.T) {
	cases := []struct {
		name  string
		edits []BandEdit
		want  map[int64]int
	}{
		{"shift up", []BandEdit{{ID: 1, UpperBound: 300}, {ID: 2, UpperBound: 500}}, map[int64]int{1: 300, 2: 500}},
		{"shift down", []BandEdit{{ID: 2, UpperBound: 100}, {ID: 1, UpperBound: 50}}, map[int64]int{1: 50, 2: 100}},
		{"swap", []BandEdit{{ID: 1, UpperBound: 300}, {ID: 2, UpperBound: 100}}, map[int64]int{1: 300, 2: 100}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := newFakeWriter(hall(), bands()...)
			f := NewForm(hall(), bands())
			require.NoError(t, f.EditThresholds(tc.edits))

			_, err := f.Save(context.Background(), w)
			require.NoError(t, err)
			for id, bound := range tc.want {
				assert.Equal(t, bound, w.thresholds[id].UpperBound, "threshold %d", id)
			}
			assert.False(t, f.HasChanges())
		})
	}
}
