// Package auth issues and verifies the signed access tokens handed out on
// successful login.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// Claims carries the registered claims plus the authenticated username.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// Issuer signs HS256 tokens with a process-wide secret.
type Issuer struct {
	secret   []byte
	validity time.Duration
	issuer   string
	now      func() time.Time
}

// NewIssuer fails with common.ErrConfiguration when the secret is empty or
// the validity is not positive. Callers treat that as fatal at startup.
func NewIssuer(secret string, validity time.Duration, issuer string) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, oops.Code("TOKEN_SECRET_MISSING").
			Wrapf(common.ErrConfiguration, "access token secret is not configured")
	}
	if validity <= 0 {
		return nil, oops.Code("TOKEN_VALIDITY_INVALID").With("validity", validity.String()).
			Wrapf(common.ErrConfiguration, "access token validity must be positive")
	}
	return &Issuer{
		secret:   []byte(secret),
		validity: validity,
		issuer:   issuer,
		now:      time.Now,
	}, nil
}

// Issue returns a signed token for username.
func (i *Issuer) Issue(username string) (string, error) {
	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.validity)),
		},
		Username: username,
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").Wrap(err)
	}
	return signed, nil
}

// Parse verifies token and returns the username it was issued for. Expired
// tokens yield common.ErrTokenExpired; any other defect yields
// common.ErrInvalidToken.
func (i *Issuer) Parse(token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}
	if !parsed.Valid || claims.Username == "" {
		return "", common.ErrInvalidToken
	}

	return claims.Username, nil
}
