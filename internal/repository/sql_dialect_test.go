package repository

import (
	"errors"
	"testing"

	"gorm.io/gorm"
)

func TestSupportsRowLocking(t *testing.T) {
	if supportsRowLocking("sqlite") {
		t.Fatalf("sqlite should not use row locking")
	}
	if !supportsRowLocking("postgres") {
		t.Fatalf("postgres should use row locking")
	}
	if !supportsRowLocking(" PostgreSQL ") {
		t.Fatalf("dialect name should be normalized")
	}
}

func TestDBDialectNameDefaultsToSQLite(t *testing.T) {
	if got := dbDialectName(nil); got != "sqlite" {
		t.Fatalf("expected sqlite, got %s", got)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{msg: "UNIQUE constraint failed: slot_time_frames.slot_id", want: true},
		{msg: "ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)", want: true},
		{msg: "no such table: slots", want: false},
	}
	for _, tc := range cases {
		if got := isUniqueViolation(errors.New(tc.msg)); got != tc.want {
			t.Fatalf("isUniqueViolation(%q)=%v, want %v", tc.msg, got, tc.want)
		}
	}
	if !isUniqueViolation(gorm.ErrDuplicatedKey) {
		t.Fatalf("gorm.ErrDuplicatedKey should be a unique violation")
	}
	if isUniqueViolation(nil) {
		t.Fatalf("nil should not be a unique violation")
	}
}
