// Package lmserr defines the error kinds surfaced by the engines. Callers
// classify with errors.Is; the HTTP layer maps kinds to status codes.
package lmserr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation   = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

func Validationf(format string, args ...any) error {
	return wrapf(ErrValidation, format, args...)
}

func NotFoundf(format string, args ...any) error {
	return wrapf(ErrNotFound, format, args...)
}

func Conflictf(format string, args ...any) error {
	return wrapf(ErrConflict, format, args...)
}

func Forbiddenf(format string, args ...any) error {
	return wrapf(ErrForbidden, format, args...)
}

func wrapf(kind error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), kind)
}
