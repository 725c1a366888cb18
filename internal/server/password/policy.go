// Package password implements the password policy: length validation,
// advisory strength estimation, hashing, comparison and reuse detection.
package password

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/samber/oops"
)

// Byte-length bounds. The upper bound is bcrypt's input limit.
const (
	MinLength = 8
	MaxLength = 72
)

// Reasons reported by Validate.
const (
	ReasonTooShort = "password is too short"
	ReasonTooLong  = "password is too long"
)

// Validation is the outcome of Validate. Err is nil when OK and otherwise
// one of the policy violation sentinels.
type Validation struct {
	OK     bool
	Reason string
	Err    error
}

// Validate checks the byte length of a plaintext password.
func Validate(password string) Validation {
	switch n := len(password); {
	case n < MinLength:
		return Validation{Reason: ReasonTooShort, Err: common.ErrPasswordTooShort}
	case n > MaxLength:
		return Validation{Reason: ReasonTooLong, Err: common.ErrPasswordTooLong}
	default:
		return Validation{OK: true}
	}
}

// Level is a coarse strength label.
type Level string

const (
	LevelVeryWeak   Level = "Very Weak"
	LevelPoor       Level = "Poor"
	LevelWeak       Level = "Weak"
	LevelReasonable Level = "Reasonable"
	LevelStrong     Level = "Strong"
	LevelVeryStrong Level = "Very Strong"
)

// Strength is an advisory estimate; it never gates registration.
type Strength struct {
	Entropy float64 `json:"entropy"`
	Level   Level   `json:"level"`
}

const punctuation = " !\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// MeasureStrength estimates entropy as L * log2(N), where L is the number
// of characters and N the size of the union of character classes present.
func MeasureStrength(password string) Strength {
	var lower, upper, digit, punct bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(punctuation, r):
			punct = true
		}
	}

	pool := 0
	if lower {
		pool += 26
	}
	if upper {
		pool += 26
	}
	if digit {
		pool += 10
	}
	if punct {
		pool += 32
	}

	var entropy float64
	if pool > 0 {
		entropy = float64(utf8.RuneCountInString(password)) * math.Log2(float64(pool))
	}
	return Strength{Entropy: entropy, Level: levelFor(entropy)}
}

func levelFor(entropy float64) Level {
	switch {
	case entropy < 0:
		return LevelVeryWeak
	case entropy < 28:
		return LevelPoor
	case entropy < 49:
		return LevelWeak
	case entropy < 60:
		return LevelReasonable
	case entropy < 128:
		return LevelStrong
	default:
		return LevelVeryStrong
	}
}

// Policy combines validation with a primary hasher for new digests and a
// set of verifiers for digests already on record.
type Policy struct {
	hasher    Hasher
	verifiers []Hasher
	dummy     string
}

// NewPolicy returns a Policy hashing new passwords with primary. Digests
// produced by any of the extra verifiers remain comparable. A dummy digest
// is computed once so unknown users cost as much as known ones.
func NewPolicy(primary Hasher, extra ...Hasher) (*Policy, error) {
	if primary == nil {
		return nil, oops.Code("PASSWORD_HASHER_MISSING").Wrapf(common.ErrConfiguration, "password hasher is required")
	}

	seed, err := common.MakeRandHexString(16)
	if err != nil {
		return nil, oops.Code("PASSWORD_DUMMY_FAILED").Wrap(err)
	}
	dummy, err := primary.Hash(seed)
	if err != nil {
		return nil, oops.Code("PASSWORD_DUMMY_FAILED").Wrap(err)
	}

	return &Policy{
		hasher:    primary,
		verifiers: append([]Hasher{primary}, extra...),
		dummy:     dummy,
	}, nil
}

func (p *Policy) Validate(password string) Validation {
	return Validate(password)
}

func (p *Policy) Strength(password string) Strength {
	return MeasureStrength(password)
}

// Hash validates password and returns a fresh salted digest.
func (p *Policy) Hash(password string) (string, error) {
	if v := Validate(password); !v.OK {
		return "", v.Err
	}
	return p.hasher.Hash(password)
}

// Compare checks password against digest. Both arguments are required.
func (p *Policy) Compare(password, digest string) (bool, error) {
	if password == "" || digest == "" {
		return false, oops.Code("PASSWORD_COMPARE_ARGS").Wrapf(common.ErrorValidation, "password and digest are required")
	}
	for _, h := range p.verifiers {
		if h.Owns(digest) {
			return h.Verify(password, digest)
		}
	}
	return false, oops.Code("PASSWORD_DIGEST_UNKNOWN").Wrapf(common.ErrorValidation, "unrecognised digest format")
}

// IsReused reports whether password matches any of digests. Empty entries
// are skipped.
func (p *Policy) IsReused(password string, digests ...string) (bool, error) {
	for _, d := range digests {
		if d == "" {
			continue
		}
		ok, err := p.Compare(password, d)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// DummyDigest is compared against when a username is unknown.
func (p *Policy) DummyDigest() string {
	return p.dummy
}
