// Package grpc exposes the authentication service over gRPC.
package grpc

import (
	"context"
	"net"
	"time"

	authv1 "github.com/dmitrijs2005/gophauth/internal/api/authv1"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/password"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"google.golang.org/grpc"
)

// AuthService is the subset of services.AuthService the transport needs.
type AuthService interface {
	Login(ctx context.Context, username, pass string) services.LoginResult
	Register(ctx context.Context, username, email, pass string) services.RegisterResult
	ChangePassword(ctx context.Context, username, current, next string) services.Result
	Profile(ctx context.Context, username string) (*models.UserView, error)
	Strength(pass string) password.Strength
}

// TokenParser resolves an access token to the username it was issued for.
type TokenParser interface {
	Parse(token string) (string, error)
}

type GRPCServer struct {
	address string
	auth    AuthService
	tokens  TokenParser
	logger  logging.Logger
	timeout time.Duration
}

// NewGRPCServer returns a server listening on address once Run is called.
// A positive timeout bounds every call.
func NewGRPCServer(address string, l logging.Logger, auth AuthService, tokens TokenParser, timeout time.Duration) *GRPCServer {
	return &GRPCServer{
		address: address,
		logger:  l.With("module", "grpc_server"),
		auth:    auth,
		tokens:  tokens,
		timeout: timeout,
	}
}

// NewServer builds a grpc.Server with the interceptor chain and the
// service registered.
func (s *GRPCServer) NewServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		s.loggingInterceptor,
		s.timeoutInterceptor,
		s.accessTokenInterceptor,
	))
	authv1.RegisterAuthServiceServer(srv, s)
	return srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops
// gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.NewServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}
