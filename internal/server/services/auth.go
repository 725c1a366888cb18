// Package services contains the server-side business logic: the user
// directory and the authentication service built on top of it.
package services

import (
	"context"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/password"
	"github.com/samber/oops"
)

// UserDirectory is the storage-facing half of the service.
type UserDirectory interface {
	CreateUser(ctx context.Context, in models.NewUser) (*models.User, error)
	UpdateUser(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error)
	FindUser(ctx context.Context, username string) (*models.User, bool, error)
	RecordFailure(ctx context.Context, id string, cooldown time.Duration) (int, error)
	RecordSuccess(ctx context.Context, id string) (*models.User, error)
}

// PasswordPolicy validates, hashes and compares passwords.
type PasswordPolicy interface {
	Validate(pw string) password.Validation
	Strength(pw string) password.Strength
	Hash(pw string) (string, error)
	Compare(pw, digest string) (bool, error)
	IsReused(pw string, digests ...string) (bool, error)
	DummyDigest() string
}

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	Issue(username string) (string, error)
}

// Recorder receives one outcome label per operation.
type Recorder interface {
	ObserveLogin(outcome string)
	ObserveRegistration(outcome string)
	ObservePasswordChange(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveLogin(string)          {}
func (nopRecorder) ObserveRegistration(string)   {}
func (nopRecorder) ObservePasswordChange(string) {}

// AuthService authenticates users, registers them and changes their
// passwords. Its methods never return errors: every failure is folded into
// a result with Success=false, a user-facing message and a Kind.
type AuthService struct {
	directory UserDirectory
	policy    PasswordPolicy
	issuer    TokenIssuer
	logger    logging.Logger
	recorder  Recorder

	lockoutThreshold int
	lockoutCooldown  time.Duration
}

// NewAuthService wires the service. Lockout settings come from cfg.
func NewAuthService(directory UserDirectory, policy PasswordPolicy, issuer TokenIssuer, logger logging.Logger, cfg *config.Config) (*AuthService, error) {
	if directory == nil || policy == nil || issuer == nil || logger == nil {
		return nil, oops.Code("AUTH_SERVICE_DEPENDENCY").Wrapf(common.ErrConfiguration, "directory, policy, issuer and logger are required")
	}
	if cfg.LockoutThreshold < 1 {
		return nil, oops.Code("AUTH_LOCKOUT_THRESHOLD").With("threshold", cfg.LockoutThreshold).
			Wrapf(common.ErrConfiguration, "lockout threshold must be at least 1")
	}
	return &AuthService{
		directory:        directory,
		policy:           policy,
		issuer:           issuer,
		logger:           logger.With("module", "auth_service"),
		recorder:         nopRecorder{},
		lockoutThreshold: cfg.LockoutThreshold,
		lockoutCooldown:  cfg.LockoutCooldown,
	}, nil
}

// WithRecorder sets the metrics recorder and returns s.
func (s *AuthService) WithRecorder(r Recorder) *AuthService {
	if r != nil {
		s.recorder = r
	}
	return s
}

func denied(kind common.Kind, msg string) AuthResult {
	return AuthResult{Success: false, Message: msg, Kind: kind}
}

// Authenticate verifies a username/password pair.
//
// Unknown usernames are compared against a dummy digest and answered
// exactly like a wrong password. A wrong password for a known user bumps
// its failure counter; the failure that brings the counter to the lockout
// threshold is reported as KindAccountLocked. A correct password resets
// the counter.
func (s *AuthService) Authenticate(ctx context.Context, username, pass string) AuthResult {
	username = strings.TrimSpace(username)
	if username == "" || pass == "" {
		return denied(common.KindValidation, MsgCredentialsRequired)
	}

	user, found, err := s.directory.FindUser(ctx, username)
	if err != nil {
		s.logger.Error(ctx, "user lookup failed", logging.ErrorAttrs(err)...)
		return denied(common.KindOf(err), MsgLoginFailed)
	}

	digest := s.policy.DummyDigest()
	if found {
		digest = user.PasswordDigest
	}

	match, err := s.policy.Compare(pass, digest)
	if err != nil {
		if !found {
			return denied(common.KindInvalidCredentials, MsgInvalidCredentials)
		}
		s.logger.Error(ctx, "password comparison failed", append(logging.ErrorAttrs(err), "user_id", user.ID)...)
		return denied(common.KindInternal, MsgLoginFailed)
	}

	if !found {
		s.logger.Info(ctx, "login rejected", "reason", "unknown user")
		return denied(common.KindInvalidCredentials, MsgInvalidCredentials)
	}

	if !match {
		attempts, err := s.directory.RecordFailure(ctx, user.ID, s.lockoutCooldown)
		if err != nil {
			s.logger.Error(ctx, "recording failed attempt", append(logging.ErrorAttrs(err), "user_id", user.ID)...)
			return denied(common.KindOf(err), MsgLoginFailed)
		}
		if attempts == s.lockoutThreshold {
			s.logger.Warn(ctx, "lockout threshold reached", "user_id", user.ID, "attempts", attempts)
			return denied(common.KindAccountLocked, MsgTooManyAttempts)
		}
		s.logger.Info(ctx, "login rejected", "reason", "wrong password", "user_id", user.ID, "attempts", attempts)
		return denied(common.KindInvalidCredentials, MsgInvalidCredentials)
	}

	updated, err := s.directory.RecordSuccess(ctx, user.ID)
	if err != nil {
		s.logger.Error(ctx, "resetting failed attempts", append(logging.ErrorAttrs(err), "user_id", user.ID)...)
		return denied(common.KindOf(err), MsgLoginFailed)
	}

	return AuthResult{Success: true, Message: MsgLoggedIn, User: updated.View()}
}

// Login authenticates and, on success, issues an access token.
func (s *AuthService) Login(ctx context.Context, username, pass string) LoginResult {
	res := s.Authenticate(ctx, username, pass)
	if !res.Success {
		s.recorder.ObserveLogin(outcome(res.Kind))
		return LoginResult{Success: false, Message: res.Message, Kind: res.Kind}
	}

	token, err := s.issuer.Issue(res.User.Username)
	if err != nil {
		s.logger.Error(ctx, "issuing access token", append(logging.ErrorAttrs(err), "user_id", res.User.ID)...)
		s.recorder.ObserveLogin(outcome(common.KindInternal))
		return LoginResult{Success: false, Message: MsgLoginFailed, Kind: common.KindInternal}
	}

	s.logger.Info(ctx, "user logged in", "user_id", res.User.ID)
	s.recorder.ObserveLogin(OutcomeSuccess)
	return LoginResult{Success: true, Message: MsgLoggedIn, User: res.User, Token: token}
}

// Register validates the password, hashes it and creates the user.
// Directory failures, duplicates included, are reported with the generic
// MsgRegistrationFailed.
func (s *AuthService) Register(ctx context.Context, username, email, pass string) RegisterResult {
	res := s.register(ctx, strings.TrimSpace(username), strings.TrimSpace(email), pass)
	s.recorder.ObserveRegistration(outcome(res.Kind))
	return res
}

func (s *AuthService) register(ctx context.Context, username, email, pass string) RegisterResult {
	if username == "" || email == "" || pass == "" {
		return RegisterResult{Message: MsgRegistrationIncomplete, Kind: common.KindValidation}
	}

	if v := s.policy.Validate(pass); !v.OK {
		return RegisterResult{Message: v.Reason, Kind: common.KindPolicyViolation}
	}

	digest, err := s.policy.Hash(pass)
	if err != nil {
		s.logger.Error(ctx, "hashing password", logging.ErrorAttrs(err)...)
		return RegisterResult{Message: MsgRegistrationFailed, Kind: common.KindRegistrationFailed}
	}

	user, err := s.directory.CreateUser(ctx, models.NewUser{
		Email:          email,
		Username:       username,
		PasswordDigest: digest,
	})
	if err != nil {
		s.logger.Warn(ctx, "registration failed", logging.ErrorAttrs(err)...)
		return RegisterResult{Message: MsgRegistrationFailed, Kind: common.KindRegistrationFailed}
	}

	strength := s.policy.Strength(pass)
	return RegisterResult{
		Success:  true,
		Message:  MsgRegistered,
		User:     user.View(),
		Strength: &strength,
	}
}

// ChangePassword re-authenticates with the current password, then sets a
// new one that must pass the policy and must not match the current digest
// or any digest in the history.
func (s *AuthService) ChangePassword(ctx context.Context, username, current, next string) Result {
	res := s.changePassword(ctx, username, current, next)
	s.recorder.ObservePasswordChange(outcome(res.Kind))
	return res
}

func (s *AuthService) changePassword(ctx context.Context, username, current, next string) Result {
	auth := s.Authenticate(ctx, username, current)
	if !auth.Success {
		return Result{Message: auth.Message, Kind: auth.Kind}
	}

	if v := s.policy.Validate(next); !v.OK {
		return Result{Message: v.Reason, Kind: common.KindPolicyViolation}
	}

	user, found, err := s.directory.FindUser(ctx, auth.User.Username)
	if err != nil || !found {
		if err == nil {
			err = common.ErrorNotFound
		}
		s.logger.Error(ctx, "reloading user for password change", logging.ErrorAttrs(err)...)
		return Result{Message: MsgPasswordChangeFailed, Kind: common.KindOf(err)}
	}

	reused, err := s.policy.IsReused(next, append([]string{user.PasswordDigest}, user.PasswordHistory...)...)
	if err != nil {
		s.logger.Error(ctx, "checking password history", append(logging.ErrorAttrs(err), "user_id", user.ID)...)
		return Result{Message: MsgPasswordChangeFailed, Kind: common.KindInternal}
	}
	if reused {
		return Result{Message: MsgPasswordReused, Kind: common.KindPasswordReused}
	}

	digest, err := s.policy.Hash(next)
	if err != nil {
		s.logger.Error(ctx, "hashing password", append(logging.ErrorAttrs(err), "user_id", user.ID)...)
		return Result{Message: MsgPasswordChangeFailed, Kind: common.KindInternal}
	}

	if _, err := s.directory.UpdateUser(ctx, user.ID, models.UserUpdate{PasswordDigest: &digest}); err != nil {
		s.logger.Error(ctx, "storing new password", append(logging.ErrorAttrs(err), "user_id", user.ID)...)
		return Result{Message: MsgPasswordChangeFailed, Kind: common.KindOf(err)}
	}

	s.logger.Info(ctx, "password changed", "user_id", user.ID)
	return Result{Success: true, Message: MsgPasswordChanged}
}

// Profile returns the sanitized record of username.
func (s *AuthService) Profile(ctx context.Context, username string) (*models.UserView, error) {
	user, found, err := s.directory.FindUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, oops.Code("AUTH_PROFILE_NOT_FOUND").With("username", username).Wrap(common.ErrorNotFound)
	}
	return user.View(), nil
}

// Strength is an advisory estimate and never fails.
func (s *AuthService) Strength(pass string) password.Strength {
	return s.policy.Strength(pass)
}
