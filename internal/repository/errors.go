package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"pos-terminal/internal/domain"
)

// Postgres SQLSTATE codes the repository reacts to.
const (
	PgErrUniqueViolation      = "23505" // unique_violation
	PgErrForeignKeyViolation  = "23503" // foreign_key_violation
	PgErrCheckViolation       = "23514" // check_violation
	PgErrExclusionViolation   = "23P01" // exclusion_violation
	PgErrSerializationFailure = "40001" // serialization_failure
)

// mapError turns a database error into the domain taxonomy. Rejections the
// server made on purpose become RemoteConflict; anything else is
// RemoteUnavailable. Domain errors pass through.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if domain.CodeOf(err) != "" {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case PgErrExclusionViolation:
			return domain.Wrap(domain.CodeRemoteConflict, op+": room already booked for that time", err)
		case PgErrUniqueViolation, PgErrSerializationFailure:
			return domain.Wrap(domain.CodeRemoteConflict, op+": concurrent update", err)
		case PgErrForeignKeyViolation, PgErrCheckViolation:
			return domain.Wrap(domain.CodeRemoteConflict, op+": rejected by server validation", err)
		}
	}
	return domain.Wrap(domain.CodeRemoteUnavailable, op, err)
}
