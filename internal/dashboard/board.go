// Package dashboard keeps the in-memory snapshot the public map is drawn
// from.  The snapshot is rebuilt wholesale on every refresh, periodically
// and on demand.
package dashboard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/venue-occupancy-map/internal/model"
)

// ErrAreaNotFound is returned by Select for ids missing from the snapshot.
var ErrAreaNotFound = errors.New("area not in current snapshot")

// FetchFailedMessage is the notification shown while the last refresh
// failed.
const FetchFailedMessage = "Die Daten konnten nicht aktualisiert werden."

// Source loads every area with its latest count and thresholds.
type Source interface {
	ListStatus(ctx context.Context) ([]model.AreaStatus, error)
}

// Status describes the board for the status line of the map page.
type Status struct {
	Refreshing  bool       `json:"refreshing"`
	RefreshedAt *time.Time `json:"refreshed_at,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	Sequence    uint64     `json:"sequence"`
	Count       int        `json:"count"`
}

// Board holds the current snapshot.  Fetches may overlap; each takes a
// sequence number when it starts and its result is applied only if no
// later-started fetch has been applied already.
type Board struct {
	src     Source
	log     *zap.Logger
	timeout time.Duration

	started  atomic.Uint64
	inflight atomic.Int32

	mu          sync.RWMutex
	areas       []model.AreaStatus
	applied     uint64
	refreshedAt time.Time
	lastErr     string
	subs        []func(model.AreaStatus)
}

// NewBoard creates an empty board.  A non-positive timeout disables the
// per-fetch deadline.
func NewBoard(src Source, log *zap.Logger, timeout time.Duration) *Board {
	if log == nil {
		log = zap.NewNop()
	}
	return &Board{src: src, log: log.Named("dashboard"), timeout: timeout, areas: []model.AreaStatus{}}
}

// Refresh fetches a new snapshot.  On failure the previous snapshot stays
// and the notification is recorded.
func (b *Board) Refresh(ctx context.Context) error {
	seq := b.started.Add(1)
	b.inflight.Add(1)
	defer b.inflight.Add(-1)

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	areas, err := b.src.ListStatus(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if seq <= b.applied {
		b.log.Debug("discarding stale refresh", zap.Uint64("seq", seq), zap.Uint64("applied", b.applied))
		return err
	}
	if err != nil {
		b.lastErr = FetchFailedMessage
		b.log.Warn("refresh failed, keeping previous snapshot", zap.Uint64("seq", seq), zap.Error(err))
		return err
	}
	if areas == nil {
		areas = []model.AreaStatus{}
	}
	b.areas = areas
	b.applied = seq
	b.refreshedAt = time.Now()
	b.lastErr = ""
	b.log.Debug("snapshot applied", zap.Uint64("seq", seq), zap.Int("areas", len(areas)))
	return nil
}

// Start refreshes immediately and then every interval until ctx is done.
// It returns right away; the loop runs in its own goroutine.
func (b *Board) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go b.run(ctx, interval)
}

func (b *Board) run(ctx context.Context, interval time.Duration) {
	b.log.Info("periodic refresh started", zap.Duration("interval", interval))
	_ = b.Refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			b.log.Info("periodic refresh stopped")
			return
		case <-ticker.C:
			_ = b.Refresh(ctx)
		}
	}
}

// Snapshot returns the current areas.  The slice must not be modified.
func (b *Board) Snapshot() []model.AreaStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.areas
}

// Area looks one area up in the current snapshot.
func (b *Board) Area(id uint64) (model.AreaStatus, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, a := range b.areas {
		if a.ID == id {
			return a, true
		}
	}
	return model.AreaStatus{}, false
}

// OnSelect registers fn to receive every selected area.
func (b *Board) OnSelect(fn func(model.AreaStatus)) {
	b.mu.Lock()
	b.subs = append(b.subs, fn)
	b.mu.Unlock()
}

// Select emits a selection event carrying the full area data.
func (b *Board) Select(id uint64) (model.AreaStatus, error) {
	a, ok := b.Area(id)
	if !ok {
		return model.AreaStatus{}, ErrAreaNotFound
	}
	b.mu.RLock()
	subs := append([]func(model.AreaStatus){}, b.subs...)
	b.mu.RUnlock()
	for _, fn := range subs {
		fn(a)
	}
	return a, nil
}

// Status reports the refresh state.
func (b *Board) Status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st := Status{
		Refreshing: b.inflight.Load() > 0,
		LastError:  b.lastErr,
		Sequence:   b.applied,
		Count:      len(b.areas),
	}
	if !b.refreshedAt.IsZero() {
		t := b.refreshedAt
		st.RefreshedAt = &t
	}
	return st
}
