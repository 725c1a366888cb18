package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	authv1 "github.com/dmitrijs2005/gophauth/internal/api/authv1"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/password"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeAuth{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:99999", nopLogger{}, &fakeAuth{}, fakeTokens{}, 0)
	assert.Error(t, srv.Run(context.Background()))
}

// startBufconn serves a real service stack over an in-memory listener.
func startBufconn(t *testing.T) (authv1.AuthServiceClient, *auth.Issuer) {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.LockoutThreshold = 3

	h, err := password.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	policy, err := password.NewPolicy(h)
	require.NoError(t, err)
	issuer, err := auth.NewIssuer("e2e-secret", time.Minute, cfg.TokenIssuer)
	require.NoError(t, err)

	dir := services.NewDirectory(users.NewMemoryStore(), nopLogger{})
	svc, err := services.NewAuthService(dir, policy, issuer, nopLogger{}, cfg)
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewGRPCServer("bufnet", nopLogger{}, svc, issuer, time.Second).Serve(ctx, lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		<-done
	})

	return authv1.NewAuthServiceClient(conn), issuer
}

func withToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, common.AccessTokenHeaderName, token)
}

func TestEndToEnd(t *testing.T) {
	client, _ := startBufconn(t)
	ctx := context.Background()

	ping, err := client.Ping(ctx, &authv1.PingRequest{})
	require.NoError(t, err)
	assert.Equal(t, "OK", ping.Status)

	reg, err := client.Register(ctx, &authv1.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, services.MsgRegistered, reg.Message)
	require.NotNil(t, reg.Strength)

	_, err = client.Register(ctx, &authv1.RegisterRequest{Username: "alice", Email: "other@example.com", Password: "correct-horse"})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	assert.Equal(t, services.MsgRegistrationFailed, status.Convert(err).Message())

	_, err = client.Register(ctx, &authv1.RegisterRequest{Username: "bob", Email: "bob@example.com", Password: "short"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Equal(t, password.ReasonTooShort, status.Convert(err).Message())

	login, err := client.Login(ctx, &authv1.LoginRequest{Username: "alice", Password: "correct-horse"})
	require.NoError(t, err)
	require.NotEmpty(t, login.AccessToken)
	assert.Equal(t, "alice", login.User.Username)

	_, err = client.WhoAmI(ctx, &authv1.WhoAmIRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	me, err := client.WhoAmI(withToken(ctx, login.AccessToken), &authv1.WhoAmIRequest{})
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, me.User.ID)

	_, err = client.ChangePassword(withToken(ctx, login.AccessToken), &authv1.ChangePasswordRequest{
		CurrentPassword: "correct-horse", NewPassword: "correct-horse",
	})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	assert.Equal(t, services.MsgPasswordReused, status.Convert(err).Message())

	changed, err := client.ChangePassword(withToken(ctx, login.AccessToken), &authv1.ChangePasswordRequest{
		CurrentPassword: "correct-horse", NewPassword: "battery-staple",
	})
	require.NoError(t, err)
	assert.Equal(t, services.MsgPasswordChanged, changed.Message)

	_, err = client.Login(ctx, &authv1.LoginRequest{Username: "alice", Password: "battery-staple"})
	require.NoError(t, err)

	st, err := client.Strength(ctx, &authv1.StrengthRequest{Password: "abc"})
	require.NoError(t, err)
	assert.Equal(t, string(password.LevelPoor), st.Strength.Level)
}

func TestEndToEnd_Lockout(t *testing.T) {
	client, _ := startBufconn(t)
	ctx := context.Background()

	_, err := client.Register(ctx, &authv1.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	var got []codes.Code
	for i := 0; i < 4; i++ {
		_, err := client.Login(ctx, &authv1.LoginRequest{Username: "alice", Password: "wrong-password"})
		got = append(got, status.Code(err))
	}
	assert.Equal(t, []codes.Code{
		codes.Unauthenticated,
		codes.Unauthenticated,
		codes.ResourceExhausted,
		codes.Unauthenticated,
	}, got)

	_, err = client.Login(ctx, &authv1.LoginRequest{Username: "ghost", Password: "wrong-password"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, services.MsgInvalidCredentials, status.Convert(err).Message())
}

func TestEndToEnd_ForeignToken(t *testing.T) {
	client, _ := startBufconn(t)

	other, err := auth.NewIssuer("another-secret", time.Minute, "")
	require.NoError(t, err)
	token, err := other.Issue("alice")
	require.NoError(t, err)

	_, err = client.WhoAmI(withToken(context.Background(), token), &authv1.WhoAmIRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, "invalid token", status.Convert(err).Message())
}
