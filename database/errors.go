package database

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a row is missing, disabled or owned by someone else.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a natural key is already taken by an enabled row.
	ErrConflict = errors.New("already exists")

	// ErrInvalidResetCode is returned when a reset code does not match.
	ErrInvalidResetCode = errors.New("invalid reset code")

	// ErrExpiredResetCode is returned when a reset code is past its expiry.
	ErrExpiredResetCode = errors.New("reset code has expired")

	// ErrParentCycle is returned when a task would become its own ancestor.
	ErrParentCycle = errors.New("task cannot be its own ancestor")

	// ErrNotPending is returned when a notification was already dispatched.
	ErrNotPending = errors.New("notification is not pending")
)

// translate maps driver and gorm errors onto the package errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// isExpected reports whether err is one of the package errors a caller handles itself.
func isExpected(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInvalidResetCode) || errors.Is(err, ErrExpiredResetCode) ||
		errors.Is(err, ErrParentCycle) || errors.Is(err, ErrNotPending)
}

// wrap annotates unexpected errors with the failed operation.
func wrap(op string, err error) error {
	err = translate(err)
	if err == nil || isExpected(err) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
