package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"

	apperrors "github.com/inthetow/backend/pkg/errors"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func boolPtr(v sql.NullBool) *bool {
	if !v.Valid {
		return nil
	}
	b := v.Bool
	return &b
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

// nullable turns a nil pointer into SQL NULL
func nullable[T any](p *T) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(q string) string {
	return "%" + likeEscaper.Replace(q) + "%"
}

// execAffectingOne runs a write and reports noRows when nothing matched
func execAffectingOne(ctx context.Context, db *sql.DB, query string, args []interface{}, failMsg string, noRows error) error {
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError(failMsg, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return noRows
	}
	return nil
}
