package model

import "time"

// Area is a named rectangular region of the venue.  X, Y, Width and Height
// live in the coordinate space shared by every area on the map (the map's
// viewBox).  Highlight overrides the occupancy colour when non-empty.
//
// Fields:
//  ID        – areas.id
//  Name      – display name such as "A3"
//  X, Y      – top-left corner of the rectangle
//  Width     – rectangle width, always > 0
//  Height    – rectangle height, always > 0
//  Highlight – optional colour override (NULL in the database when empty)
//  Capacity  – informational capacity figure
//  UpdatedAt – last modification time
type Area struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Highlight string    `json:"highlight,omitempty"`
	Capacity  int       `json:"capacity"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidGeometry reports whether the area describes a non-degenerate rectangle.
func (a Area) ValidGeometry() bool {
	return a.Width > 0 && a.Height > 0
}

// AreaPatch carries a partial update of an Area.  Nil fields are left
// untouched.  A non-nil empty Highlight clears the override.
type AreaPatch struct {
	Name      *string `json:"name,omitempty"`
	X         *int    `json:"x,omitempty"`
	Y         *int    `json:"y,omitempty"`
	Width     *int    `json:"width,omitempty"`
	Height    *int    `json:"height,omitempty"`
	Highlight *string `json:"highlight,omitempty"`
	Capacity  *int    `json:"capacity,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p AreaPatch) Empty() bool {
	return p.Name == nil && p.X == nil && p.Y == nil && p.Width == nil &&
		p.Height == nil && p.Highlight == nil && p.Capacity == nil
}

// Apply returns a copy of a with the patch applied.
func (p AreaPatch) Apply(a Area) Area {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.X != nil {
		a.X = *p.X
	}
	if p.Y != nil {
		a.Y = *p.Y
	}
	if p.Width != nil {
		a.Width = *p.Width
	}
	if p.Height != nil {
		a.Height = *p.Height
	}
	if p.Highlight != nil {
		a.Highlight = *p.Highlight
	}
	if p.Capacity != nil {
		a.Capacity = *p.Capacity
	}
	return a
}

// Threshold is one occupancy band of an area.  UpperBound is the highest
// visitor count still classified into the band.  Negative IDs are client
// placeholders for bands that have not been persisted yet.
type Threshold struct {
	ID           int64  `json:"id"`
	AreaID       uint64 `json:"area_id"`
	UpperBound   int    `json:"upper_bound"`
	Color        string `json:"color"`
	Alert        bool   `json:"alert"`
	AlertMessage string `json:"alert_message,omitempty"`
}

// Persisted reports whether the threshold carries a database identifier.
func (t Threshold) Persisted() bool { return t.ID > 0 }

// ThresholdPatch is a partial threshold update.
type ThresholdPatch struct {
	UpperBound   *int    `json:"upper_bound,omitempty"`
	Color        *string `json:"color,omitempty"`
	Alert        *bool   `json:"alert,omitempty"`
	AlertMessage *string `json:"alert_message,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p ThresholdPatch) Empty() bool {
	return p.UpperBound == nil && p.Color == nil && p.Alert == nil && p.AlertMessage == nil
}

// Apply returns a copy of t with the patch applied.
func (p ThresholdPatch) Apply(t Threshold) Threshold {
	if p.UpperBound != nil {
		t.UpperBound = *p.UpperBound
	}
	if p.Color != nil {
		t.Color = *p.Color
	}
	if p.Alert != nil {
		t.Alert = *p.Alert
	}
	if p.AlertMessage != nil {
		t.AlertMessage = *p.AlertMessage
	}
	return t
}

// VisitorSnapshot is one occupancy observation for an area.
type VisitorSnapshot struct {
	ID         uint64    `json:"id"`
	AreaID     uint64    `json:"area_id"`
	Visitors   int       `json:"visitors"`
	ObservedAt time.Time `json:"observed_at"`
}

// AreaStatus is an area together with its latest visitor count and its
// thresholds.  It is the unit the dashboard snapshot is made of.
type AreaStatus struct {
	Area
	Visitors   int         `json:"visitors"`
	ObservedAt *time.Time  `json:"observed_at,omitempty"`
	Thresholds []Threshold `json:"thresholds"`
}
