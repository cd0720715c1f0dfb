// Package queue defines message payloads exchanged over the message broker
// and the consumer that ingests visitor counts.
package queue

import (
	"errors"
	"time"
)

// VisitorCountEvent is one occupancy reading produced by the entrance
// counters.  ObservedAt may be omitted; the time of receipt is used then.
type VisitorCountEvent struct {
	AreaID     uint64    `json:"area_id"`
	Visitors   int       `json:"visitors"`
	ObservedAt time.Time `json:"observed_at,omitempty"`
}

// Validate rejects readings that can never be stored.
func (e VisitorCountEvent) Validate() error {
	if e.AreaID == 0 {
		return errors.New("area_id required")
	}
	if e.Visitors < 0 {
		return errors.New("visitors must not be negative")
	}
	return nil
}

// Kinds of AreaChangedEvent.
const (
	AreaCreated      = "area.created"
	AreaUpdated      = "area.updated"
	AreaDeleted      = "area.deleted"
	ThresholdCreated = "threshold.created"
	ThresholdUpdated = "threshold.updated"
	ThresholdDeleted = "threshold.deleted"
	VisitorsRecorded = "visitors.recorded"
)

// AreaChangedEvent is published to the area events queue after every
// successful admin write.  It names the changed area and the acting user.
type AreaChangedEvent struct {
	EventID     string    `json:"event_id"`
	Kind        string    `json:"kind"`
	AreaID      uint64    `json:"area_id"`
	ThresholdID int64     `json:"threshold_id,omitempty"`
	ActorID     uint64    `json:"actor_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}
