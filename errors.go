package ments

import (
	"database/sql"
	"errors"
	"strings"
)

// Store errors. Handlers map them to HTTP status codes with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrDuplicate           = errors.New("already exists")
	ErrAlreadyUnsubscribed = errors.New("already unsubscribed")
	ErrInvalidEmail        = errors.New("invalid email address")
	ErrEmailDomain         = errors.New("email domain not allowed")
	ErrWeakPassword        = errors.New("password must be at least 8 characters")
	ErrBadCredentials      = errors.New("invalid email or password")
	ErrNotVerified         = errors.New("account not verified")
)

// storeErr maps driver errors onto the package sentinels.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case strings.Contains(err.Error(), "UNIQUE constraint failed"):
		return errors.Join(ErrDuplicate, err)
	}
	return err
}
