// Package sqlxrepo implements the repositories on PostgreSQL with sqlx.
package sqlxrepo

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/sekolah-app/sekolah/core"
)

// postgres error codes
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// uniqueFields maps unique constraints to the request field they protect.
var uniqueFields = map[string]string{
	"users_email_key":           "email",
	"student_profiles_nisn_key": "nisn",
	"classes_name_key":          "name",
	"subjects_name_key":         "name",
}

// withTx runs fn inside a transaction, committing when fn succeeds.
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = errors.Wrap(tx.Commit(), "committing transaction")
	}()
	return fn(tx)
}

// mapErr turns constraint violations into domain errors and wraps everything else with msg.
func mapErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case uniqueViolation:
			field, ok := uniqueFields[pqErr.Constraint]
			if !ok {
				field = pqErr.Column
			}
			return core.NewConflictError(field, nil)
		case foreignKeyViolation:
			field := strings.TrimSuffix(strings.TrimPrefix(pqErr.Constraint, pqErr.Table+"_"), "_fkey")
			return core.NewValidationError(nil, core.FieldError{Field: field, Error: "referenced row not found"})
		}
	}
	return errors.Wrap(err, msg)
}

// trapNoRows returns notFound instead of sql.ErrNoRows.
func trapNoRows(err error, notFound error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return mapErr(err, msg)
}

// checkAffected returns notFound when a write touched no row.
func checkAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "reading rows affected")
	}
	if n == 0 {
		return notFound
	}
	return nil
}
