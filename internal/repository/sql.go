package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const (
	uniqueViolation = "23505"

	// invalidText is raised when a malformed literal, such as a non-UUID id,
	// is cast to the column type.
	invalidText = "22P02"

	// dataException is the SQLSTATE class for out-of-range and malformed values.
	dataException = "22"
)

// setClause accumulates "col = $n" fragments for a partial UPDATE.
type setClause struct {
	parts []string
	args  []interface{}
}

func (s *setClause) add(column string, value interface{}) {
	s.args = append(s.args, value)
	s.parts = append(s.parts, fmt.Sprintf("%s = $%d", column, len(s.args)))
}

// raw appends an expression that takes no argument.
func (s *setClause) raw(expr string) {
	s.parts = append(s.parts, expr)
}

func (s *setClause) String() string {
	return strings.Join(s.parts, ", ")
}

// next is the placeholder index for the first argument after the SET list.
func (s *setClause) next() int {
	return len(s.args) + 1
}

func nullIfEmpty(s *string) interface{} {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

// sqlState returns the SQLSTATE carried by a pgx or lib/pq error, or "".
func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return sqlState(err) == uniqueViolation
}

// isInvalidText reports a lookup key that cannot name any row, such as "P1"
// against a UUID column.
func isInvalidText(err error) bool {
	return sqlState(err) == invalidText
}

// writeError maps driver errors from INSERT and UPDATE statements onto the
// repository sentinels.
func writeError(err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if strings.HasPrefix(sqlState(err), dataException) {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return err
}

// keyError maps errors from statements addressing a single row by key:
// a malformed key is reported as a missing row.
func keyError(err error) error {
	if isInvalidText(err) {
		return ErrNotFound
	}
	return err
}

// validIDs drops entries that are not UUIDs so a single bad id does not fail
// an ANY($1) lookup.
func validIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			out = append(out, id)
		}
	}
	return out
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
