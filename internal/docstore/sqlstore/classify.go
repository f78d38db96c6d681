package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	apperrors "github.com/memorylib/integrator/internal/errors"
)

// classifyPostgreSQLError marks retryable PostgreSQL failures as transient.
// Everything else passes through unchanged.
func classifyPostgreSQLError(err error) error {
	if err == nil || apperrors.Is(err, apperrors.ErrTransient) {
		return err
	}
	if isTransientConn(err) || isTransientPostgreSQL(err) {
		return fmt.Errorf("%w: %w", apperrors.ErrTransient, err)
	}
	return err
}

// classifyMySQLError marks retryable MySQL failures as transient.
// Everything else passes through unchanged.
func classifyMySQLError(err error) error {
	if err == nil || apperrors.Is(err, apperrors.ErrTransient) {
		return err
	}
	if isTransientConn(err) || isTransientMySQL(err) {
		return fmt.Errorf("%w: %w", apperrors.ErrTransient, err)
	}
	return err
}

func isTransientConn(err error) bool {
	return apperrors.Is(err, driver.ErrBadConn) ||
		apperrors.Is(err, sql.ErrConnDone) ||
		apperrors.Is(err, context.DeadlineExceeded)
}

func isTransientPostgreSQL(err error) bool {
	var pqErr *pq.Error
	if !apperrors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code.Class() {
	case "08", "40", "53", "57":
		// connection exception, transaction rollback (serialization failure,
		// deadlock), insufficient resources, operator intervention.
		return true
	}
	// Unique violation: a concurrent transaction created the row first. The
	// retried transaction observes it and converges.
	return pqErr.Code == "23505"
}

func isTransientMySQL(err error) bool {
	if apperrors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	var myErr *mysql.MySQLError
	if !apperrors.As(err, &myErr) {
		return false
	}
	switch myErr.Number {
	case 1040: // too many connections
		return true
	case 1053: // server shutdown in progress
		return true
	case 1062: // duplicate entry, lost create race
		return true
	case 1205: // lock wait timeout
		return true
	case 1213: // deadlock
		return true
	}
	return false
}
