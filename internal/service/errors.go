package service

import (
	"errors"
	"fmt"

	"github.com/intellicog/records/internal/mailer"
	"github.com/intellicog/records/internal/repo"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrConfiguration      = errors.New("server misconfigured")

	ErrPasswordMismatch     = fmt.Errorf("%w: passwords do not match", ErrValidation)
	ErrInvalidOrExpiredCode = fmt.Errorf("%w: invalid or expired code", ErrValidation)
	ErrEmailTaken           = fmt.Errorf("%w: email already registered", ErrConflict)
)

func validation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// storeErr maps repository sentinels to service ones, naming the entity.
func storeErr(what string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repo.ErrNotFound):
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	case errors.Is(err, repo.ErrDuplicate):
		return fmt.Errorf("%s already exists: %w", what, ErrConflict)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}

func mailErr(err error) error {
	if errors.Is(err, mailer.ErrNotConfigured) {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return err
}
