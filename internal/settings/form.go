// Package settings holds the editable state of one area in the management
// view: the area attributes, its threshold list and the diff against the
// last loaded state.  Save pushes only that diff to a Writer.
package settings

import (
	"errors"
	"strings"

	"github.com/iliyamo/venue-occupancy-map/internal/model"
	"github.com/iliyamo/venue-occupancy-map/internal/occupancy"
	"github.com/iliyamo/venue-occupancy-map/internal/repository"
)

// NewThresholdColor is used when a band is added without a colour.
const NewThresholdColor = "#cccccc"

// ErrUnknownField is returned by Set for names outside the editable set.
var ErrUnknownField = errors.New("unknown field")

// Fields accepted by Form.Set.
const (
	FieldName      = "name"
	FieldHighlight = "highlight"
	FieldCapacity  = "capacity"
	FieldX         = "x"
	FieldY         = "y"
	FieldWidth     = "width"
	FieldHeight    = "height"
)

// Form is the editing session of one area.  It is not safe for concurrent
// use.
type Form struct {
	original           model.Area
	originalThresholds []model.Threshold

	area       model.Area
	thresholds []model.Threshold

	nextPlaceholder int64
}

// NewForm starts editing area with the given thresholds.
func NewForm(area model.Area, thresholds []model.Threshold) *Form {
	f := &Form{}
	f.Load(area, thresholds)
	return f
}

// Load discards every pending edit and starts over from the given state.
func (f *Form) Load(area model.Area, thresholds []model.Threshold) {
	f.original = area
	f.area = area
	f.originalThresholds = clone(thresholds)
	f.thresholds = clone(thresholds)
	f.nextPlaceholder = -1
}

// Area returns the edited attributes.
func (f *Form) Area() model.Area { return f.area }

// Original returns the last loaded or saved attributes.
func (f *Form) Original() model.Area { return f.original }

// Thresholds returns the edited bands in ascending bound order.
func (f *Form) Thresholds() []model.Threshold { return occupancy.Sorted(f.thresholds) }

// Set assigns one attribute from its raw input value.  Numeric fields take
// the leading integer of raw and fall back to 0 when there is none.  An
// empty highlight clears the override.
func (f *Form) Set(field, raw string) error {
	switch strings.ToLower(strings.TrimSpace(field)) {
	case FieldName:
		f.area.Name = raw
	case FieldHighlight:
		f.area.Highlight = strings.TrimSpace(raw)
	case FieldCapacity:
		f.area.Capacity = ParseIntOrZero(raw)
	case FieldX:
		f.area.X = ParseIntOrZero(raw)
	case FieldY:
		f.area.Y = ParseIntOrZero(raw)
	case FieldWidth:
		f.area.Width = ParseIntOrZero(raw)
	case FieldHeight:
		f.area.Height = ParseIntOrZero(raw)
	default:
		return ErrUnknownField
	}
	return nil
}

// AddThreshold appends a band that exists only in the form until Save.
// The returned id is a negative placeholder.
func (f *Form) AddThreshold(upper int, color string) (int64, error) {
	if err := f.checkBound(0, upper); err != nil {
		return 0, err
	}
	color = strings.TrimSpace(color)
	if color == "" {
		color = NewThresholdColor
	}
	id := f.nextPlaceholder
	f.nextPlaceholder--
	f.thresholds = append(f.thresholds, model.Threshold{ID: id, AreaID: f.area.ID, UpperBound: upper, Color: color})
	return id, nil
}

// EditThreshold changes the bound and colour of a band.  An empty colour
// keeps the current one.
func (f *Form) EditThreshold(id int64, upper int, color string) error {
	i := f.indexOf(id)
	if i < 0 {
		return repository.ErrThresholdNotFound
	}
	if err := f.checkBound(id, upper); err != nil {
		return err
	}
	f.thresholds[i].UpperBound = upper
	if color = strings.TrimSpace(color); color != "" {
		f.thresholds[i].Color = color
	}
	return nil
}

// BandEdit is one entry for EditThresholds.
type BandEdit struct {
	ID         int64
	UpperBound int
	Color      string
}

// EditThresholds applies several edits at once.  Bounds are checked on the
// resulting list only, so bands may shift or trade bounds within one call.
// On error the form is left as it was.
func (f *Form) EditThresholds(edits []BandEdit) error {
	prev := clone(f.thresholds)
	for _, e := range edits {
		i := f.indexOf(e.ID)
		if i < 0 {
			f.thresholds = prev
			return repository.ErrThresholdNotFound
		}
		f.thresholds[i].UpperBound = e.UpperBound
		if color := strings.TrimSpace(e.Color); color != "" {
			f.thresholds[i].Color = color
		}
	}
	if err := f.validateBands(); err != nil {
		f.thresholds = prev
		return err
	}
	return nil
}

// DeleteThreshold removes a band from the form.
func (f *Form) DeleteThreshold(id int64) error {
	i := f.indexOf(id)
	if i < 0 {
		return repository.ErrThresholdNotFound
	}
	f.thresholds = append(f.thresholds[:i], f.thresholds[i+1:]...)
	return nil
}

// checkBound validates upper for the band self (0 for a new band).
func (f *Form) checkBound(self int64, upper int) error {
	if upper <= 0 {
		return repository.ErrInvalidBound
	}
	for _, t := range f.thresholds {
		if t.ID != self && t.UpperBound == upper {
			return repository.ErrDuplicateBound
		}
	}
	return nil
}

func (f *Form) indexOf(id int64) int {
	for i, t := range f.thresholds {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// ParseIntOrZero returns the integer at the start of s (after leading
// whitespace and an optional sign), or 0 when s does not start with a
// digit.  "12px" yields 12 and "3.9" yields 3.
func ParseIntOrZero(s string) int {
	s = strings.TrimSpace(s)
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	n := 0
	for i := 0; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int(s[i]-'0')
		if n > 1<<31-1 {
			n = 1<<31 - 1
		}
	}
	if neg {
		return -n
	}
	return n
}

func clone(in []model.Threshold) []model.Threshold {
	out := make([]model.Threshold, len(in))
	copy(out, in)
	return out
}
