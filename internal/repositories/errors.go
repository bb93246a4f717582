package repositories

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a row does not exist for the tenant
	ErrNotFound = errors.New("record not found")

	// ErrLockNotAvailable is returned when a row lock could not be taken before lock_timeout
	// or the transaction lost a serialization race
	ErrLockNotAvailable = errors.New("row is locked by a concurrent transaction")
)

// Postgres error codes that mean "retry with fresh state"
const (
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// translate maps driver errors onto the package sentinels
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgSerializationFailure, pgDeadlockDetected:
			return errors.Join(ErrLockNotAvailable, err)
		}
	}
	return err
}
