package services

import (
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/password"
)

// User-facing messages. Unknown usernames and wrong passwords share
// MsgInvalidCredentials.
const (
	MsgLoggedIn            = "user logged in"
	MsgCredentialsRequired = "username and password are required"
	MsgInvalidCredentials  = "invalid username or password"
	MsgTooManyAttempts     = "too many login attempts, please try again later"
	MsgLoginFailed         = "login failed"

	MsgRegistered             = "user registered successfully"
	MsgRegistrationIncomplete = "username, email and password are required"
	MsgRegistrationFailed     = "failed to register user"

	MsgPasswordChanged      = "password changed"
	MsgPasswordReused       = "password was used recently, choose a different one"
	MsgPasswordChangeFailed = "failed to change password"
)

// Outcome label recorded for successful operations.
const OutcomeSuccess = "success"

// AuthResult is the outcome of Authenticate. User is set only on success.
type AuthResult struct {
	Success bool
	Message string
	User    *models.UserView
	Kind    common.Kind
}

// LoginResult extends AuthResult with the issued token.
type LoginResult struct {
	Success bool
	Message string
	User    *models.UserView
	Token   string
	Kind    common.Kind
}

// RegisterResult carries the created user and an advisory strength
// estimate of the accepted password.
type RegisterResult struct {
	Success  bool
	Message  string
	User     *models.UserView
	Strength *password.Strength
	Kind     common.Kind
}

// Result is a bare success flag with a message.
type Result struct {
	Success bool
	Message string
	Kind    common.Kind
}

func outcome(kind common.Kind) string {
	if kind == common.KindNone {
		return OutcomeSuccess
	}
	return kind.String()
}
