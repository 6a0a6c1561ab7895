package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrRecordNotFound       = errors.New("record not found")
	ErrDuplicateKey         = errors.New("duplicate key violation")
	ErrForeignKey           = errors.New("foreign key violation")
	ErrNotNullViolation     = errors.New("not null constraint violation")
	ErrInvalidData          = errors.New("invalid data")
	ErrConnectionFailed     = errors.New("database connection failed")
	ErrConnectionLost       = errors.New("connection lost")
	ErrTransactionFailed    = errors.New("transaction failed")
	ErrQueryTimeout         = errors.New("query timeout exceeded")
	ErrSerializationFailure = errors.New("serialization failure")
	ErrDeadlock             = errors.New("deadlock detected")
	ErrTableNotFound        = errors.New("table not found")
	ErrTooManyConnections   = errors.New("too many connections")
)

// TranslateError maps GORM and pgconn errors to the package sentinels.
// The returned error wraps both the sentinel and the original error.
// Unknown errors are returned unchanged.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}

	if sentinel := classify(err); sentinel != nil {
		return &translated{sentinel: sentinel, cause: err}
	}
	return err
}

func classify(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrRecordNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateKey
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return ErrForeignKey
	case errors.Is(err, gorm.ErrInvalidData), errors.Is(err, gorm.ErrInvalidValue):
		return ErrInvalidData
	case errors.Is(err, gorm.ErrInvalidTransaction):
		return ErrTransactionFailed
	case errors.Is(err, context.DeadlineExceeded):
		return ErrQueryTimeout
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyCode(pgErr.Code)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "duplicate key"):
		return ErrDuplicateKey
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"):
		return ErrConnectionFailed
	case strings.Contains(msg, "broken pipe"), strings.Contains(msg, "connection reset"):
		return ErrConnectionLost
	}
	return nil
}

func classifyCode(code string) error {
	switch code {
	case "23505": // unique_violation
		return ErrDuplicateKey
	case "23503": // foreign_key_violation
		return ErrForeignKey
	case "23502": // not_null_violation
		return ErrNotNullViolation
	case "22P02", "22001": // invalid_text_representation, string_data_right_truncation
		return ErrInvalidData
	case "40001": // serialization_failure
		return ErrSerializationFailure
	case "40P01": // deadlock_detected
		return ErrDeadlock
	case "42P01": // undefined_table
		return ErrTableNotFound
	case "53300": // too_many_connections
		return ErrTooManyConnections
	case "57014": // query_canceled
		return ErrQueryTimeout
	case "08000", "08001", "08004":
		return ErrConnectionFailed
	case "08003", "08006":
		return ErrConnectionLost
	}
	return nil
}

// IsRetryable reports whether an operation failing with err may succeed if repeated.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSerializationFailure) ||
		errors.Is(err, ErrDeadlock) ||
		errors.Is(err, ErrConnectionLost) ||
		errors.Is(err, ErrConnectionFailed) ||
		errors.Is(err, ErrTooManyConnections)
}

type translated struct {
	sentinel error
	cause    error
}

func (t *translated) Error() string {
	return t.sentinel.Error() + ": " + t.cause.Error()
}

func (t *translated) Unwrap() []error {
	return []error{t.sentinel, t.cause}
}
