package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/venue-occupancy-map/internal/model"
)

// ThresholdRepo persists the occupancy bands of each area.  Upper bounds
// are unique per area (uq_threshold_bound) so band selection is never
// ambiguous.
type ThresholdRepo struct {
	db *sql.DB
}

// NewThresholdRepo constructs a ThresholdRepo.
func NewThresholdRepo(db *sql.DB) *ThresholdRepo { return &ThresholdRepo{db: db} }

const thresholdColumns = `id, area_id, upper_bound, color, alert, alert_message`

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func scanThreshold(rs rowScanner) (model.Threshold, error) {
	var (
		t   model.Threshold
		msg sql.NullString
	)
	if err := rs.Scan(&t.ID, &t.AreaID, &t.UpperBound, &t.Color, &t.Alert, &msg); err != nil {
		return model.Threshold{}, err
	}
	t.AlertMessage = msg.String
	return t, nil
}

func listThresholds(ctx context.Context, q queryer, areaID uint64) ([]model.Threshold, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+thresholdColumns+` FROM thresholds WHERE area_id = ? ORDER BY upper_bound, id`, areaID)
	if err != nil {
		return nil, fmt.Errorf("list thresholds: %w", err)
	}
	defer rows.Close()

	out := []model.Threshold{}
	for rows.Next() {
		t, err := scanThreshold(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListByArea returns the thresholds of one area sorted by upper bound.
func (r *ThresholdRepo) ListByArea(ctx context.Context, areaID uint64) ([]model.Threshold, error) {
	return listThresholds(ctx, r.db, areaID)
}

// GetByID loads a single threshold.
func (r *ThresholdRepo) GetByID(ctx context.Context, id int64) (*model.Threshold, error) {
	t, err := scanThreshold(r.db.QueryRowContext(ctx, `SELECT `+thresholdColumns+` FROM thresholds WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrThresholdNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Create inserts t and sets its ID.  Non-positive bounds are rejected
// before touching the database; a bound already used by the same area
// yields ErrDuplicateBound and an unknown area ErrAreaNotFound.
func (r *ThresholdRepo) Create(ctx context.Context, t *model.Threshold) error {
	if t.UpperBound <= 0 {
		return ErrInvalidBound
	}
	t.Color = strings.TrimSpace(t.Color)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO thresholds (area_id, upper_bound, color, alert, alert_message) VALUES (?, ?, ?, ?, ?)`,
		t.AreaID, t.UpperBound, t.Color, t.Alert, nullString(t.AlertMessage))
	if err != nil {
		return translateThresholdErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

// Update applies a partial update and returns the stored threshold.
func (r *ThresholdRepo) Update(ctx context.Context, id int64, p model.ThresholdPatch) (*model.Threshold, error) {
	cur, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next := p.Apply(*cur)
	if p.Empty() {
		return &next, nil
	}
	if next.UpperBound <= 0 {
		return nil, ErrInvalidBound
	}
	next.Color = strings.TrimSpace(next.Color)
	res, err := r.db.ExecContext(ctx,
		`UPDATE thresholds SET upper_bound = ?, color = ?, alert = ?, alert_message = ? WHERE id = ?`,
		next.UpperBound, next.Color, next.Alert, nullString(next.AlertMessage), id)
	if err != nil {
		return nil, translateThresholdErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 && *cur != next {
		// the row vanished between the read and the write
		return nil, ErrThresholdNotFound
	}
	return &next, nil
}

// Delete removes a threshold.
func (r *ThresholdRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM thresholds WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrThresholdNotFound
	}
	return nil
}

func translateThresholdErr(err error) error {
	switch mysqlErrno(err) {
	case mysqlDuplicateEntry:
		return ErrDuplicateBound
	case mysqlNoReferenced:
		return ErrAreaNotFound
	}
	return fmt.Errorf("write threshold: %w", err)
}
