package repository

import (
	"errors"
	"time"

	"github.com/fuelpoints/platform/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// uniqueViolation is the SQLSTATE Postgres reports for a unique index hit.
const uniqueViolation = "23505"

// IsUniqueViolation reports whether err is a Postgres unique violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// conflictOr maps a unique violation to a CONFLICT AppError and leaves any
// other error as is.
func conflictOr(err error, msg string) error {
	if IsUniqueViolation(err) {
		return &domain.AppError{Code: domain.CodeConflict, Message: msg, Status: 409, Cause: err}
	}
	return err
}

func dateArg(d *domain.LocalDate) pgtype.Date {
	if d == nil || d.IsZero() {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: d.Time(time.UTC), Valid: true}
}

func dateValue(d pgtype.Date) *domain.LocalDate {
	if !d.Valid {
		return nil
	}
	ld := domain.LocalDateOf(d.Time.UTC())
	return &ld
}
