package common

import (
	"context"
	"errors"
)

// Kind classifies a failure for callers that only need to branch on the
// category of an error, such as transport layers mapping to status codes.
type Kind int

const (
	KindNone Kind = iota
	KindValidation
	KindPolicyViolation
	KindDuplicateIdentity
	KindRegistrationFailed
	KindNotFound
	KindInvalidCredentials
	KindAccountLocked
	KindPasswordReused
	KindUnauthenticated
	KindConfiguration
	KindStorage
	KindInternal
)

var kindNames = map[Kind]string{
	KindNone:               "none",
	KindValidation:         "validation",
	KindPolicyViolation:    "policy_violation",
	KindDuplicateIdentity:  "duplicate_identity",
	KindRegistrationFailed: "registration_failed",
	KindNotFound:           "not_found",
	KindInvalidCredentials: "invalid_credentials",
	KindAccountLocked:      "account_locked",
	KindPasswordReused:     "password_reused",
	KindUnauthenticated:    "unauthenticated",
	KindConfiguration:      "configuration",
	KindStorage:            "storage",
	KindInternal:           "internal",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// kindTable is checked in order; the first matching sentinel wins.
var kindTable = []struct {
	target error
	kind   Kind
}{
	{ErrPolicyViolation, KindPolicyViolation},
	{ErrorValidation, KindValidation},
	{ErrDuplicateIdentity, KindDuplicateIdentity},
	{ErrorNotFound, KindNotFound},
	{ErrInvalidCredentials, KindInvalidCredentials},
	{ErrAccountLocked, KindAccountLocked},
	{ErrPasswordReused, KindPasswordReused},
	{ErrInvalidToken, KindUnauthenticated},
	{ErrTokenExpired, KindUnauthenticated},
	{ErrorUnauthorized, KindUnauthenticated},
	{ErrConfiguration, KindConfiguration},
	{ErrVersionConflict, KindStorage},
	{ErrStorage, KindStorage},
	{context.DeadlineExceeded, KindStorage},
	{context.Canceled, KindStorage},
}

// KindOf reports the Kind of err. A nil error yields KindNone and anything
// unrecognised yields KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, entry := range kindTable {
		if errors.Is(err, entry.target) {
			return entry.kind
		}
	}
	return KindInternal
}
