package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/claimdesk/claimdesk/internal/platform/apperror"
)

// MapError maps driver-level errors to the application taxonomy. Transient
// classifications matter most: the job runner retries anything wrapped in
// apperror.ErrTransient and surfaces everything else immediately.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return fmt.Errorf("%w: %s", apperror.ErrConflict, pgErr.ConstraintName)

	case pgerrcode.ForeignKeyViolation:
		return fmt.Errorf("%w: %s", apperror.ErrValidation, pgErr.Detail)

	case pgerrcode.CheckViolation:
		return fmt.Errorf("%w: check constraint %s", apperror.ErrValidation, pgErr.ConstraintName)

	case pgerrcode.LockNotAvailable,
		pgerrcode.SerializationFailure,
		pgerrcode.DeadlockDetected:
		return fmt.Errorf("%w: lock contention: %s", apperror.ErrTransient, pgErr.Message)

	case pgerrcode.ConnectionException,
		pgerrcode.ConnectionDoesNotExist,
		pgerrcode.ConnectionFailure,
		pgerrcode.CannotConnectNow,
		pgerrcode.SQLClientUnableToEstablishSQLConnection,
		pgerrcode.AdminShutdown,
		pgerrcode.CrashShutdown:
		return fmt.Errorf("%w: connection: %s", apperror.ErrTransient, pgErr.Message)

	case pgerrcode.QueryCanceled:
		return fmt.Errorf("%w: query canceled: %s", apperror.ErrTransient, pgErr.Message)

	case pgerrcode.InsufficientResources,
		pgerrcode.TooManyConnections,
		pgerrcode.OutOfMemory,
		pgerrcode.DiskFull:
		return fmt.Errorf("%w: resource limit: %s", apperror.ErrTransient, pgErr.Message)

	default:
		return fmt.Errorf("postgres error [%s]: %s: %w", pgErr.Code, pgErr.Message, err)
	}
}
