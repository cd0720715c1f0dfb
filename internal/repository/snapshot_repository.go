package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/venue-occupancy-map/internal/model"
)

// SnapshotRepo appends visitor observations.  The dashboard only ever
// reads the newest row per area.
type SnapshotRepo struct{ DB *sql.DB }

func NewSnapshotRepo(db *sql.DB) *SnapshotRepo { return &SnapshotRepo{DB: db} }

// Record stores a visitor count for an area.  A zero time means now.
func (r *SnapshotRepo) Record(ctx context.Context, areaID uint64, visitors int, at time.Time) (*model.VisitorSnapshot, error) {
	if visitors < 0 {
		return nil, ErrInvalidCount
	}
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO visitor_snapshots (area_id, visitors, observed_at) VALUES (?,?,?)",
		areaID, visitors, at)
	if err != nil {
		if mysqlErrno(err) == mysqlNoReferenced {
			return nil, ErrAreaNotFound
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &model.VisitorSnapshot{ID: uint64(id), AreaID: areaID, Visitors: visitors, ObservedAt: at}, nil
}

// Latest returns the newest snapshot of an area, or nil when none exists.
func (r *SnapshotRepo) Latest(ctx context.Context, areaID uint64) (*model.VisitorSnapshot, error) {
	var s model.VisitorSnapshot
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, area_id, visitors, observed_at FROM visitor_snapshots WHERE area_id=? ORDER BY observed_at DESC, id DESC LIMIT 1",
		areaID).Scan(&s.ID, &s.AreaID, &s.Visitors, &s.ObservedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}
