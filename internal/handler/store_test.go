package handler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/venue-occupancy-map/internal/model"
	"github.com/iliyamo/venue-occupancy-map/internal/queue"
	"github.com/iliyamo/venue-occupancy-map/internal/repository"
)

// memDB backs the in-memory stores used by the handler tests.  It enforces
// the same rules the MySQL repositories do.
type memDB struct {
	mu         sync.Mutex
	areas      map[uint64]model.Area
	thresholds map[int64]model.Threshold
	visitors   map[uint64]int
	snapshots  map[uint64]model.VisitorSnapshot
	nextArea   uint64
	nextBand   int64
	failList   bool
	// gate, when set before a refresh starts, holds ListStatus until closed
	gate chan struct{}
}

func newMemDB() *memDB {
	return &memDB{
		areas:      map[uint64]model.Area{},
		thresholds: map[int64]model.Threshold{},
		visitors:   map[uint64]int{},
		snapshots:  map[uint64]model.VisitorSnapshot{},
		nextArea:   1,
		nextBand:   1,
	}
}

func (db *memDB) addArea(a model.Area, visitors int, bands ...model.Threshold) model.Area {
	db.mu.Lock()
	defer db.mu.Unlock()
	a.ID = db.nextArea
	db.nextArea++
	db.areas[a.ID] = a
	db.visitors[a.ID] = visitors
	for _, t := range bands {
		t.ID = db.nextBand
		db.nextBand++
		t.AreaID = a.ID
		db.thresholds[t.ID] = t
	}
	return a
}

func (db *memDB) bandsOf(areaID uint64) []model.Threshold {
	out := []model.Threshold{}
	for _, t := range db.thresholds {
		if t.AreaID == areaID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpperBound < out[j].UpperBound })
	return out
}

func (db *memDB) boundTaken(areaID uint64, bound int, self int64) bool {
	for _, t := range db.thresholds {
		if t.AreaID == areaID && t.UpperBound == bound && t.ID != self {
			return true
		}
	}
	return false
}

// ListStatus satisfies dashboard.Source.
func (db *memDB) ListStatus(context.Context) ([]model.AreaStatus, error) {
	if db.gate != nil {
		<-db.gate
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.failList {
		return nil, errors.New("connection refused")
	}
	out := make([]model.AreaStatus, 0, len(db.areas))
	for _, a := range db.areas {
		out = append(out, model.AreaStatus{Area: a, Visitors: db.visitors[a.ID], Thresholds: db.bandsOf(a.ID)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memAreas struct{ *memDB }

func (s memAreas) GetStatus(_ context.Context, id uint64) (*model.AreaStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.areas[id]
	if !ok {
		return nil, repository.ErrAreaNotFound
	}
	return &model.AreaStatus{Area: a, Visitors: s.visitors[id], Thresholds: s.bandsOf(id)}, nil
}

func (s memAreas) Create(_ context.Context, a *model.Area) error {
	if !a.ValidGeometry() {
		return repository.ErrInvalidGeometry
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.nextArea
	s.nextArea++
	s.areas[a.ID] = *a
	return nil
}

func (s memAreas) Update(_ context.Context, id uint64, p model.AreaPatch) (*model.Area, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.areas[id]
	if !ok {
		return nil, repository.ErrAreaNotFound
	}
	next := p.Apply(cur)
	if !next.ValidGeometry() {
		return nil, repository.ErrInvalidGeometry
	}
	next.UpdatedAt = time.Now().UTC()
	s.areas[id] = next
	return &next, nil
}

func (s memAreas) Delete(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.areas[id]; !ok {
		return repository.ErrAreaNotFound
	}
	delete(s.areas, id)
	for tid, t := range s.thresholds {
		if t.AreaID == id {
			delete(s.thresholds, tid)
		}
	}
	return nil
}

type memThresholds struct{ *memDB }

func (s memThresholds) ListByArea(_ context.Context, areaID uint64) ([]model.Threshold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bandsOf(areaID), nil
}

func (s memThresholds) GetByID(_ context.Context, id int64) (*model.Threshold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.thresholds[id]
	if !ok {
		return nil, repository.ErrThresholdNotFound
	}
	return &t, nil
}

func (s memThresholds) Create(_ context.Context, t *model.Threshold) error {
	if t.UpperBound <= 0 {
		return repository.ErrInvalidBound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.areas[t.AreaID]; !ok {
		return repository.ErrAreaNotFound
	}
	if s.boundTaken(t.AreaID, t.UpperBound, 0) {
		return repository.ErrDuplicateBound
	}
	t.ID = s.nextBand
	s.nextBand++
	s.thresholds[t.ID] = *t
	return nil
}

func (s memThresholds) Update(_ context.Context, id int64, p model.ThresholdPatch) (*model.Threshold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.thresholds[id]
	if !ok {
		return nil, repository.ErrThresholdNotFound
	}
	next := p.Apply(cur)
	if next.UpperBound <= 0 {
		return nil, repository.ErrInvalidBound
	}
	if s.boundTaken(next.AreaID, next.UpperBound, id) {
		return nil, repository.ErrDuplicateBound
	}
	s.thresholds[id] = next
	return &next, nil
}

func (s memThresholds) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.thresholds[id]; !ok {
		return repository.ErrThresholdNotFound
	}
	delete(s.thresholds, id)
	return nil
}

type memSnapshots struct{ *memDB }

func (s memSnapshots) Record(_ context.Context, areaID uint64, visitors int, at time.Time) (*model.VisitorSnapshot, error) {
	if visitors < 0 {
		return nil, repository.ErrInvalidCount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.areas[areaID]; !ok {
		return nil, repository.ErrAreaNotFound
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	s.visitors[areaID] = visitors
	snap := model.VisitorSnapshot{ID: uint64(len(s.snapshots) + 1), AreaID: areaID, Visitors: visitors, ObservedAt: at}
	s.snapshots[areaID] = snap
	return &snap, nil
}

func (s memSnapshots) Latest(_ context.Context, areaID uint64) (*model.VisitorSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[areaID]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

// memWriter is the settings.Writer over memDB.
type memWriter struct{ *memDB }

func (w memWriter) UpdateArea(ctx context.Context, id uint64, p model.AreaPatch) (*model.Area, error) {
	return memAreas(w).Update(ctx, id, p)
}

func (w memWriter) CreateThreshold(ctx context.Context, t *model.Threshold) error {
	return memThresholds(w).Create(ctx, t)
}

func (w memWriter) UpdateThreshold(ctx context.Context, id int64, p model.ThresholdPatch) (*model.Threshold, error) {
	return memThresholds(w).Update(ctx, id, p)
}

func (w memWriter) DeleteThreshold(ctx context.Context, id int64) error {
	return memThresholds(w).Delete(ctx, id)
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.AreaChangedEvent
}

func (p *recordingPublisher) PublishAreaChanged(_ context.Context, ev queue.AreaChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Kind)
	}
	return out
}
