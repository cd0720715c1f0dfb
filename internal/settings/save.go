package settings

import (
	"context"
	"fmt"
	"slices"

	"github.com/iliyamo/venue-occupancy-map/internal/model"
	"github.com/iliyamo/venue-occupancy-map/internal/repository"
)

// ChangeSet is the difference between the loaded and the edited state.
type ChangeSet struct {
	Area    model.AreaPatch   `json:"area"`
	Added   []model.Threshold `json:"added"`
	Changed []model.Threshold `json:"changed"`
	Removed []int64           `json:"removed"`
}

// Empty reports whether nothing needs to be written.
func (cs ChangeSet) Empty() bool {
	return cs.Area.Empty() && len(cs.Added) == 0 && len(cs.Changed) == 0 && len(cs.Removed) == 0
}

// Writer persists the pieces of a ChangeSet.
type Writer interface {
	UpdateArea(ctx context.Context, id uint64, p model.AreaPatch) (*model.Area, error)
	CreateThreshold(ctx context.Context, t *model.Threshold) error
	UpdateThreshold(ctx context.Context, id int64, p model.ThresholdPatch) (*model.Threshold, error)
	DeleteThreshold(ctx context.Context, id int64) error
}

// RepoWriter adapts the MySQL repositories to Writer.
type RepoWriter struct {
	Areas      *repository.AreaRepo
	Thresholds *repository.ThresholdRepo
}

func (w RepoWriter) UpdateArea(ctx context.Context, id uint64, p model.AreaPatch) (*model.Area, error) {
	return w.Areas.Update(ctx, id, p)
}

func (w RepoWriter) CreateThreshold(ctx context.Context, t *model.Threshold) error {
	return w.Thresholds.Create(ctx, t)
}

func (w RepoWriter) UpdateThreshold(ctx context.Context, id int64, p model.ThresholdPatch) (*model.Threshold, error) {
	return w.Thresholds.Update(ctx, id, p)
}

func (w RepoWriter) DeleteThreshold(ctx context.Context, id int64) error {
	return w.Thresholds.Delete(ctx, id)
}

// Diff computes the minimal write set.  Only area fields that differ from
// the loaded state appear in the patch.
func (f *Form) Diff() ChangeSet {
	var cs ChangeSet
	o, a := f.original, f.area
	if a.Name != o.Name {
		cs.Area.Name = &a.Name
	}
	if a.X != o.X {
		cs.Area.X = &a.X
	}
	if a.Y != o.Y {
		cs.Area.Y = &a.Y
	}
	if a.Width != o.Width {
		cs.Area.Width = &a.Width
	}
	if a.Height != o.Height {
		cs.Area.Height = &a.Height
	}
	if a.Highlight != o.Highlight {
		cs.Area.Highlight = &a.Highlight
	}
	if a.Capacity != o.Capacity {
		cs.Area.Capacity = &a.Capacity
	}

	before := make(map[int64]model.Threshold, len(f.originalThresholds))
	for _, t := range f.originalThresholds {
		before[t.ID] = t
	}
	seen := make(map[int64]bool, len(f.thresholds))
	for _, t := range f.thresholds {
		seen[t.ID] = true
		if !t.Persisted() {
			cs.Added = append(cs.Added, t)
			continue
		}
		if old, ok := before[t.ID]; ok && old != t {
			cs.Changed = append(cs.Changed, t)
		}
	}
	for _, t := range f.originalThresholds {
		if !seen[t.ID] {
			cs.Removed = append(cs.Removed, t.ID)
		}
	}
	return cs
}

// HasChanges reports whether Save would write anything.
func (f *Form) HasChanges() bool { return !f.Diff().Empty() }

// Save writes the pending changes: the area patch first, then removed,
// changed and added bands.  Placeholder ids are replaced by the ids the
// writer assigns.  Every step that succeeds is folded into the loaded
// state, so after a failure Diff reports only what is still missing and a
// retry never creates a band twice.
func (f *Form) Save(ctx context.Context, w Writer) (ChangeSet, error) {
	cs := f.Diff()
	if cs.Empty() {
		return cs, nil
	}
	if !f.area.ValidGeometry() {
		return cs, repository.ErrInvalidGeometry
	}
	if err := f.validateBands(); err != nil {
		return cs, err
	}

	if !cs.Area.Empty() {
		updated, err := w.UpdateArea(ctx, f.original.ID, cs.Area)
		if err != nil {
			return cs, fmt.Errorf("update area: %w", err)
		}
		f.original = *updated
		f.area = *updated
	}

	for _, id := range cs.Removed {
		if err := w.DeleteThreshold(ctx, id); err != nil {
			return cs, fmt.Errorf("delete threshold %d: %w", id, err)
		}
		f.dropOriginal(id)
	}

	if err := f.writeChanged(ctx, w, cs.Changed); err != nil {
		return cs, err
	}

	for i, t := range cs.Added {
		placeholder := t.ID
		t.ID = 0
		t.AreaID = f.original.ID
		if err := w.CreateThreshold(ctx, &t); err != nil {
			return cs, fmt.Errorf("create threshold: %w", err)
		}
		if j := f.indexOf(placeholder); j >= 0 {
			f.thresholds[j] = t
		}
		cs.Added[i] = t
		f.putOriginal(t)
	}

	f.original = f.area
	f.originalThresholds = clone(f.thresholds)
	return cs, nil
}

// writeChanged updates the edited bands so that no write lands on a bound
// another stored band still holds.  When the remaining edits form a cycle
// one band is first parked on a free bound.
func (f *Form) writeChanged(ctx context.Context, w Writer, changed []model.Threshold) error {
	holder := make(map[int]int64, len(f.originalThresholds))
	for _, t := range f.originalThresholds {
		holder[t.UpperBound] = t.ID
	}
	update := func(id int64, p model.ThresholdPatch) error {
		stored, err := w.UpdateThreshold(ctx, id, p)
		if err != nil {
			return fmt.Errorf("update threshold %d: %w", id, err)
		}
		if old, ok := f.storedBound(id); ok && holder[old] == id {
			delete(holder, old)
		}
		holder[stored.UpperBound] = id
		f.putOriginal(*stored)
		return nil
	}

	todo := clone(changed)
	for len(todo) > 0 {
		i := slices.IndexFunc(todo, func(t model.Threshold) bool {
			id, taken := holder[t.UpperBound]
			return !taken || id == t.ID
		})
		if i < 0 {
			park := freeBound(holder, todo)
			if err := update(todo[0].ID, model.ThresholdPatch{UpperBound: &park}); err != nil {
				return err
			}
			continue
		}
		t := todo[i]
		bound, color := t.UpperBound, t.Color
		if err := update(t.ID, model.ThresholdPatch{UpperBound: &bound, Color: &color}); err != nil {
			return err
		}
		todo = slices.Delete(todo, i, i+1)
	}
	return nil
}

// freeBound returns a bound above every held and every targeted one.
func freeBound(holder map[int]int64, todo []model.Threshold) int {
	top := 0
	for b := range holder {
		top = max(top, b)
	}
	for _, t := range todo {
		top = max(top, t.UpperBound)
	}
	return top + 1
}

func (f *Form) storedBound(id int64) (int, bool) {
	for _, t := range f.originalThresholds {
		if t.ID == id {
			return t.UpperBound, true
		}
	}
	return 0, false
}

func (f *Form) validateBands() error {
	seen := make(map[int]bool, len(f.thresholds))
	for _, t := range f.thresholds {
		if t.UpperBound <= 0 {
			return repository.ErrInvalidBound
		}
		if seen[t.UpperBound] {
			return repository.ErrDuplicateBound
		}
		seen[t.UpperBound] = true
	}
	return nil
}

func (f *Form) dropOriginal(id int64) {
	for i, t := range f.originalThresholds {
		if t.ID == id {
			f.originalThresholds = append(f.originalThresholds[:i], f.originalThresholds[i+1:]...)
			return
		}
	}
}

func (f *Form) putOriginal(t model.Threshold) {
	for i, o := range f.originalThresholds {
		if o.ID == t.ID {
			f.originalThresholds[i] = t
			return
		}
	}
	f.originalThresholds = append(f.originalThresholds, t)
}
