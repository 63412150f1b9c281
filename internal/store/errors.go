package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Sentinel errors returned by every Store implementation. Handlers map them to
// HTTP statuses; anything else is an unexpected failure.
var (
	ErrNotFound              = errors.New("not found")
	ErrUsernameTaken         = errors.New("username already taken")
	ErrEmailTaken            = errors.New("email already registered")
	ErrAlreadyMember         = errors.New("already a member")
	ErrAdminCannotLeave      = errors.New("club admin cannot leave")
	ErrCapacityReached       = errors.New("capacity reached")
	ErrNotMember             = errors.New("not a club member")
	ErrAlreadyJoined         = errors.New("already joined")
	ErrNotParticipant        = errors.New("not a session participant")
	ErrEquipmentNotConnected = errors.New("equipment not connected")
	ErrStaleStatus           = errors.New("status changed concurrently")
	ErrConflict              = errors.New("conflicting record")
)

// Postgres SQLSTATE codes we translate.
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// Named unique constraints from migrations/000001_initial_schema.up.sql.
var uniqueConstraints = map[string]error{
	"users_username_key": ErrUsernameTaken,
	"users_email_key":    ErrEmailTaken,
}

// translate converts driver and GORM errors into sentinels and leaves the rest untouched.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			if sentinel, ok := uniqueConstraints[pgErr.ConstraintName]; ok {
				return sentinel
			}
			return ErrConflict
		case foreignKeyViolation:
			return ErrNotFound
		}
	}
	return err
}

// wrap annotates err with the failing operation. Sentinels stay matchable with errors.Is.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, translate(err))
}
