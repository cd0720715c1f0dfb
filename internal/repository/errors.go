// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios: a missing
// row (404), a write rejected by validation (400) or a write that clashes
// with existing data (409).
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrAreaNotFound is returned when an area lookup or write finds no row.
	ErrAreaNotFound = errors.New("area not found")
	// ErrThresholdNotFound is returned when a threshold lookup finds no row.
	ErrThresholdNotFound = errors.New("threshold not found")
	// ErrUserNotFound is returned when no user matches.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailExists is returned when a user is created twice.
	ErrEmailExists = errors.New("email already exists")

	// ErrInvalidGeometry rejects areas whose width or height is not positive.
	ErrInvalidGeometry = errors.New("width and height must be greater than zero")
	// ErrInvalidBound rejects thresholds whose upper bound is not positive.
	ErrInvalidBound = errors.New("upper bound must be greater than zero")
	// ErrInvalidCount rejects negative visitor counts.
	ErrInvalidCount = errors.New("visitor count must not be negative")
	// ErrDuplicateBound is returned when an area already has a threshold
	// with the same upper bound.
	ErrDuplicateBound = errors.New("an area cannot have two thresholds with the same upper bound")
)

// MySQL server error numbers the repositories translate.
const (
	mysqlDuplicateEntry = 1062
	mysqlNoReferenced   = 1452
)

func mysqlErrno(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}
