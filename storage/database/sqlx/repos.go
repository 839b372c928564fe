// Package sqlxrepos implements the domain repositories on PostgreSQL via sqlx.
//
// Uniqueness rules the original enforced with best-effort pre-insert checks
// (join codes, one submission per student, one membership row) are enforced
// here with unique indexes and conditional inserts instead, which removes the
// check-then-insert race window.
package sqlxrepos

import (
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

const uniqueViolation = "23505"

// violatesUnique reports whether err is a unique-constraint violation on the named constraint.
func violatesUnique(err error, constraint string) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == uniqueViolation && pqErr.Constraint == constraint
}

func isNoRows(err error) bool {
	return errors.Cause(err) == sql.ErrNoRows
}
