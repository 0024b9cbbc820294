package repository

import (
	"errors"
	"strings"

	"fortify/core/apperr"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// MySQL server error numbers.
const (
	mysqlDuplicateEntry  = 1062
	mysqlRowIsReferenced = 1451
	mysqlNoReferencedRow = 1452
)

// translateError turns storage constraint failures into business errors and passes everything else through.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Conflict("already exists", err)
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return apperr.InvalidReference(err)
	}

	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDuplicateEntry:
			return apperr.Conflict("already exists", err)
		case mysqlRowIsReferenced, mysqlNoReferencedRow:
			return apperr.InvalidReference(err)
		}
	}

	// SQLite reports constraint failures as plain text when the driver cannot classify them.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return apperr.Conflict("already exists", err)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return apperr.InvalidReference(err)
	}
	return err
}
