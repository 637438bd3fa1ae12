package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "workchat/pkg/errors"
)

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// translate maps gorm sentinel errors onto the application taxonomy.
func translate(err error, entity string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperrors.NotFound(entity)
	case isUniqueViolation(err):
		return apperrors.ErrAlreadyExists
	default:
		return err
	}
}

func affected(res *gorm.DB, entity string) error {
	if res.Error != nil {
		return translate(res.Error, entity)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound(entity)
	}
	return nil
}
