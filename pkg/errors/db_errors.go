// Package errors classifies database errors raised by the price snapshot store.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// DatabaseErrorType represents the type of database error.
type DatabaseErrorType int

const (
	// ErrorTypeUnknown represents an unknown database error.
	ErrorTypeUnknown DatabaseErrorType = iota
	// ErrorTypeDuplicateKey represents a duplicate key constraint violation (MySQL 1062).
	ErrorTypeDuplicateKey
	// ErrorTypeDataTooLong represents a data too long error (MySQL 1406).
	ErrorTypeDataTooLong
	// ErrorTypeNotFound represents a record not found error.
	ErrorTypeNotFound
	// ErrorTypeDeadlock represents a deadlock or lock wait timeout (MySQL 1213, 1205).
	ErrorTypeDeadlock
	// ErrorTypeConnectionError represents a database connection error.
	ErrorTypeConnectionError
	// ErrorTypeInvalidValue represents a null or truncated value (MySQL 1048, 1265, 1366).
	ErrorTypeInvalidValue
	// ErrorTypeDisabled means no database is configured.
	ErrorTypeDisabled
)

// ErrPersistenceDisabled is returned by stores when no DSN is configured.
var ErrPersistenceDisabled = errors.New("persistence disabled: no database configured")

// DatabaseError wraps a database error with classification information.
type DatabaseError struct {
	Type         DatabaseErrorType
	OriginalErr  error
	MySQLErrCode uint16
	Message      string
}

// Error implements the error interface.
func (e *DatabaseError) Error() string {
	if e.MySQLErrCode > 0 {
		return fmt.Sprintf("%s (MySQL error %d): %v", e.Message, e.MySQLErrCode, e.OriginalErr)
	}
	return fmt.Sprintf("%s: %v", e.Message, e.OriginalErr)
}

// Unwrap returns the underlying error for errors.Is and errors.As compatibility.
func (e *DatabaseError) Unwrap() error {
	return e.OriginalErr
}

// ClassifyDBError classifies a database error into a specific error type.
//
//   - ErrPersistenceDisabled → ErrorTypeDisabled
//   - gorm.ErrRecordNotFound → ErrorTypeNotFound
//   - MySQL 1062 → ErrorTypeDuplicateKey
//   - MySQL 1406 → ErrorTypeDataTooLong
//   - MySQL 1213, 1205 → ErrorTypeDeadlock
//   - MySQL 1048, 1265, 1366 → ErrorTypeInvalidValue
//   - driver.ErrBadConn, context deadline, dial failures → ErrorTypeConnectionError
//
// Example:
//
//	if err := repo.SaveSnapshots(ctx, snaps); err != nil {
//	    if errors.ClassifyDBError(err).Type == errors.ErrorTypeDuplicateKey {
//	        return nil
//	    }
//	    return err
//	}
func ClassifyDBError(err error) *DatabaseError {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrPersistenceDisabled) {
		return &DatabaseError{Type: ErrorTypeDisabled, OriginalErr: err, Message: "persistence disabled"}
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &DatabaseError{Type: ErrorTypeNotFound, OriginalErr: err, Message: "record not found"}
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return classifyMySQLError(mysqlErr)
	}

	if errors.Is(err, mysql.ErrInvalidConn) || errors.Is(err, context.DeadlineExceeded) || isConnectionError(err.Error()) {
		return &DatabaseError{Type: ErrorTypeConnectionError, OriginalErr: err, Message: "database connection error"}
	}

	return &DatabaseError{Type: ErrorTypeUnknown, OriginalErr: err, Message: "unknown database error"}
}

// classifyMySQLError classifies a MySQL-specific error.
func classifyMySQLError(err *mysql.MySQLError) *DatabaseError {
	dbErr := &DatabaseError{OriginalErr: err, MySQLErrCode: err.Number}

	switch err.Number {
	case 1062: // ER_DUP_ENTRY
		dbErr.Type, dbErr.Message = ErrorTypeDuplicateKey, "duplicate key constraint violation"
	case 1406: // ER_DATA_TOO_LONG
		dbErr.Type, dbErr.Message = ErrorTypeDataTooLong, "data too long for column"
	case 1213: // ER_LOCK_DEADLOCK
		dbErr.Type, dbErr.Message = ErrorTypeDeadlock, "deadlock detected"
	case 1205: // ER_LOCK_WAIT_TIMEOUT
		dbErr.Type, dbErr.Message = ErrorTypeDeadlock, "lock wait timeout"
	case 1048: // ER_BAD_NULL_ERROR
		dbErr.Type, dbErr.Message = ErrorTypeInvalidValue, "column cannot be null"
	case 1265, 1366: // ER_WARN_DATA_TRUNCATED, ER_TRUNCATED_WRONG_VALUE
		dbErr.Type, dbErr.Message = ErrorTypeInvalidValue, "invalid or truncated value"
	default:
		dbErr.Type, dbErr.Message = ErrorTypeUnknown, "MySQL error"
	}

	return dbErr
}

var connectionKeywords = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"i/o timeout",
	"connection lost",
	"can't connect",
	"dial tcp",
}

// isConnectionError checks if the error message indicates a connection problem.
func isConnectionError(errMsg string) bool {
	lower := strings.ToLower(errMsg)
	for _, keyword := range connectionKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// IsDisabledError checks if the error means persistence is not configured.
func IsDisabledError(err error) bool {
	dbErr := ClassifyDBError(err)
	return dbErr != nil && dbErr.Type == ErrorTypeDisabled
}

// IsTransientError reports whether retrying the operation later could succeed.
func IsTransientError(err error) bool {
	dbErr := ClassifyDBError(err)
	return dbErr != nil && (dbErr.Type == ErrorTypeDeadlock || dbErr.Type == ErrorTypeConnectionError)
}
