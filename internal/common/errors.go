// Package common defines shared constants and sentinel errors used across
// client and server layers of gophauth. Callers should use errors.Is to
// match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrStorage         = errors.New("storage error")
	ErrVersionConflict = errors.New("version conflict")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")
	ErrConfiguration  = errors.New("configuration error")

	// Credential errors.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrPasswordReused     = errors.New("password was used recently")

	// Password policy violations.
	ErrPolicyViolation  = errors.New("password policy violation")
	ErrPasswordTooShort = fmt.Errorf("password is too short: %w", ErrPolicyViolation)
	ErrPasswordTooLong  = fmt.Errorf("password is too long: %w", ErrPolicyViolation)

	// Identity uniqueness violations. Both match ErrDuplicateIdentity.
	ErrDuplicateIdentity = errors.New("identity already exists")
	ErrDuplicateEmail    = fmt.Errorf("email already exists: %w", ErrDuplicateIdentity)
	ErrDuplicateUsername = fmt.Errorf("username already exists: %w", ErrDuplicateIdentity)

	// Token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
