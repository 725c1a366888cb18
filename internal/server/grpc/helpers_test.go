package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/password"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
)

type nopLogger struct{}

func (n nopLogger) Debug(context.Context, string, ...any) {}
func (n nopLogger) Info(context.Context, string, ...any)  {}
func (n nopLogger) Warn(context.Context, string, ...any)  {}
func (n nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger            { return n }

type fakeAuth struct {
	login    services.LoginResult
	register services.RegisterResult
	change   services.Result
	profile  *models.UserView
	profErr  error
	strength password.Strength

	gotUsername string
	gotCurrent  string
	gotNext     string
}

func (f *fakeAuth) Login(ctx context.Context, username, pass string) services.LoginResult {
	f.gotUsername = username
	return f.login
}

func (f *fakeAuth) Register(ctx context.Context, username, email, pass string) services.RegisterResult {
	f.gotUsername = username
	return f.register
}

func (f *fakeAuth) ChangePassword(ctx context.Context, username, current, next string) services.Result {
	f.gotUsername, f.gotCurrent, f.gotNext = username, current, next
	return f.change
}

func (f *fakeAuth) Profile(ctx context.Context, username string) (*models.UserView, error) {
	f.gotUsername = username
	return f.profile, f.profErr
}

func (f *fakeAuth) Strength(pass string) password.Strength {
	return f.strength
}

// fakeTokens accepts "token-<username>".
type fakeTokens struct{}

func (fakeTokens) Parse(token string) (string, error) {
	const prefix = "token-"
	if len(token) <= len(prefix) || token[:len(prefix)] != prefix {
		return "", common.ErrInvalidToken
	}
	return token[len(prefix):], nil
}

func newTestServer(a AuthService) *GRPCServer {
	return NewGRPCServer("127.0.0.1:0", nopLogger{}, a, fakeTokens{}, 0)
}

func withUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameKey, username)
}

var errBoom = errors.New("boom")
