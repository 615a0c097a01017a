package storage

import (
	"database/sql"
	"time"
)

// -----------------------------------------------------------------------------
// Null-to-pointer conversion helpers shared by both store implementations.
// -----------------------------------------------------------------------------

func nullFloatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// -----------------------------------------------------------------------------

func nullStringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

// -----------------------------------------------------------------------------

func nullBoolPtr(v sql.NullBool) *bool {
	if !v.Valid {
		return nil
	}
	b := v.Bool
	return &b
}

// -----------------------------------------------------------------------------

func nullIntPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	i := v.Int64
	return &i
}

// -----------------------------------------------------------------------------

func nullTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
