package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// nowFunc is the clock used for timestamps.  Times are kept in UTC with
// microsecond precision, which is what DATETIME(6) stores.
var nowFunc = func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

// newID returns a time-ordered UUID so that id order follows creation
// order for rows created within the same clock tick.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

// withTx runs fn inside a transaction, committing on success.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// MaxBulkIDs caps the id list of a bulk update so the statement stays
// within the bind-variable limits of both drivers.
const MaxBulkIDs = 1000

// inClause returns "?, ?, ?" for the de-duplicated, non-empty ids together
// with the ids as query arguments.  field names the request field in
// validation errors.
func inClause(field string, ids []string) (string, []any, error) {
	seen := make(map[string]struct{}, len(ids))
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		args = append(args, id)
	}
	switch {
	case len(args) == 0:
		return "", nil, invalid(field, "must be a non-empty array of ids")
	case len(args) > MaxBulkIDs:
		return "", nil, invalid(field, "must contain at most %d ids", MaxBulkIDs)
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", "), args, nil
}

func encodeList(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func decodeList(s string) ([]string, error) {
	out := []string{}
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("decode list column: %w", err)
	}
	return out, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
