package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return domain.Invalid("id", "message id already exists")
		case "23514": // check_violation
			return domain.Invalid(pgErr.ConstraintName, pgErr.Message)
		}
	}
	return err
}
