package repository // repository holds data access logic for domain entities

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/venue-occupancy-map/internal/model"
)

// AreaRepo reads and writes the areas table.  ListStatus is the read side
// of the dashboard: every area joined with its latest visitor snapshot and
// its thresholds.
type AreaRepo struct {
	db *sql.DB // db is the underlying database connection
}

// NewAreaRepo constructs an AreaRepo with the given DB handle.
func NewAreaRepo(db *sql.DB) *AreaRepo {
	return &AreaRepo{db: db}
}

const areaColumns = `a.id, a.name, a.x, a.y, a.width, a.height, a.highlight, a.capacity, a.updated_at`

// statusQuery selects each area with the visitor count of its most recent
// snapshot.  Areas without snapshots report zero visitors and a NULL time.
const statusQuery = `SELECT ` + areaColumns + `, COALESCE(s.visitors, 0), s.observed_at
	FROM areas a
	LEFT JOIN visitor_snapshots s ON s.id = (
		SELECT vs.id FROM visitor_snapshots vs
		WHERE vs.area_id = a.id
		ORDER BY vs.observed_at DESC, vs.id DESC
		LIMIT 1)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArea(rs rowScanner, extra ...any) (model.Area, error) {
	var (
		a         model.Area
		highlight sql.NullString
	)
	dest := append([]any{&a.ID, &a.Name, &a.X, &a.Y, &a.Width, &a.Height, &highlight, &a.Capacity, &a.UpdatedAt}, extra...)
	if err := rs.Scan(dest...); err != nil {
		return model.Area{}, err
	}
	a.Highlight = highlight.String
	return a, nil
}

func scanStatus(rs rowScanner) (model.AreaStatus, error) {
	var (
		visitors int
		observed sql.NullTime
	)
	a, err := scanArea(rs, &visitors, &observed)
	if err != nil {
		return model.AreaStatus{}, err
	}
	st := model.AreaStatus{Area: a, Visitors: visitors, Thresholds: []model.Threshold{}}
	if observed.Valid {
		t := observed.Time
		st.ObservedAt = &t
	}
	return st, nil
}

// ListStatus returns every area ordered by id, each with its latest visitor
// count and its thresholds sorted by upper bound.
func (r *AreaRepo) ListStatus(ctx context.Context) ([]model.AreaStatus, error) {
	rows, err := r.db.QueryContext(ctx, statusQuery+` ORDER BY a.id`)
	if err != nil {
		return nil, fmt.Errorf("list areas: %w", err)
	}
	defer rows.Close()

	out := []model.AreaStatus{}
	index := map[uint64]int{}
	for rows.Next() {
		st, err := scanStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("scan area: %w", err)
		}
		index[st.ID] = len(out)
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	trows, err := r.db.QueryContext(ctx, `SELECT `+thresholdColumns+` FROM thresholds ORDER BY area_id, upper_bound, id`)
	if err != nil {
		return nil, fmt.Errorf("list thresholds: %w", err)
	}
	defer trows.Close()
	for trows.Next() {
		t, err := scanThreshold(trows)
		if err != nil {
			return nil, fmt.Errorf("scan threshold: %w", err)
		}
		if i, ok := index[t.AreaID]; ok {
			out[i].Thresholds = append(out[i].Thresholds, t)
		}
	}
	return out, trows.Err()
}

// GetStatus returns one area with its latest visitor count and thresholds.
func (r *AreaRepo) GetStatus(ctx context.Context, id uint64) (*model.AreaStatus, error) {
	st, err := scanStatus(r.db.QueryRowContext(ctx, statusQuery+` WHERE a.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAreaNotFound
		}
		return nil, err
	}
	ths, err := listThresholds(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	st.Thresholds = ths
	return &st, nil
}

// GetByID retrieves an area by its ID.  It returns ErrAreaNotFound when no
// row is found.
func (r *AreaRepo) GetByID(ctx context.Context, id uint64) (*model.Area, error) {
	a, err := scanArea(r.db.QueryRowContext(ctx, `SELECT `+areaColumns+` FROM areas a WHERE a.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAreaNotFound
		}
		return nil, err
	}
	return &a, nil
}

// Create inserts a new area and fills in its ID and UpdatedAt.
func (r *AreaRepo) Create(ctx context.Context, a *model.Area) error {
	a.Name = strings.TrimSpace(a.Name)
	if !a.ValidGeometry() {
		return ErrInvalidGeometry
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO areas (name, x, y, width, height, highlight, capacity) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.Name, a.X, a.Y, a.Width, a.Height, nullString(a.Highlight), a.Capacity)
	if err != nil {
		return fmt.Errorf("insert area: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// Update applies a partial update inside a transaction and returns the
// stored area.  Only the columns named by the patch change.  A patch that
// would leave the rectangle degenerate is rejected with ErrInvalidGeometry.
func (r *AreaRepo) Update(ctx context.Context, id uint64, p model.AreaPatch) (*model.Area, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	cur, err := scanArea(tx.QueryRowContext(ctx, `SELECT `+areaColumns+` FROM areas a WHERE a.id = ? FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAreaNotFound
		}
		return nil, err
	}
	if p.Empty() {
		return &cur, tx.Commit()
	}
	if p.Name != nil {
		trimmed := strings.TrimSpace(*p.Name)
		p.Name = &trimmed
	}
	if p.Highlight != nil {
		trimmed := strings.TrimSpace(*p.Highlight)
		p.Highlight = &trimmed
	}
	next := p.Apply(cur)
	if !next.ValidGeometry() {
		return nil, ErrInvalidGeometry
	}

	sets, args := patchAssignments(p)
	args = append(args, id)
	if _, err := tx.ExecContext(ctx, `UPDATE areas SET `+strings.Join(sets, ", ")+`, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, args...); err != nil {
		return nil, fmt.Errorf("update area: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	next.UpdatedAt = time.Now().UTC()
	return &next, nil
}

// patchAssignments turns the non-nil fields of p into "col = ?" fragments
// in a fixed column order.
func patchAssignments(p model.AreaPatch) ([]string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if p.Name != nil {
		add("name", *p.Name)
	}
	if p.X != nil {
		add("x", *p.X)
	}
	if p.Y != nil {
		add("y", *p.Y)
	}
	if p.Width != nil {
		add("width", *p.Width)
	}
	if p.Height != nil {
		add("height", *p.Height)
	}
	if p.Highlight != nil {
		add("highlight", nullString(*p.Highlight))
	}
	if p.Capacity != nil {
		add("capacity", *p.Capacity)
	}
	return sets, args
}

// Delete removes an area; thresholds and snapshots go with it through the
// ON DELETE CASCADE foreign keys.
func (r *AreaRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM areas WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAreaNotFound
	}
	return nil
}

// nullString stores empty strings as NULL.
func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}
