package client

import (
	"context"
	"fmt"
	"sync"

	authv1 "github.com/dmitrijs2005/gophauth/internal/api/authv1"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type GRPCClient struct {
	conn   *grpc.ClientConn
	client authv1.AuthServiceClient

	mu          sync.RWMutex
	accessToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)
	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if token := s.Token(); token != "" {
		ctx = withAccessToken(ctx, token)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// NewGRPCClient connects lazily to endpoint. Extra dial options are
// appended after the defaults.
func NewGRPCClient(endpoint string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{}
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpoint, dialOpts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.client = authv1.NewAuthServiceClient(conn)
	return c, nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

func (s *GRPCClient) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = token
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	resp, err := s.client.Ping(ctx, &authv1.PingRequest{})
	if err != nil {
		return mapError(err)
	}
	if resp.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) Register(ctx context.Context, username, email, password string) (*authv1.RegisterResponse, error) {
	resp, err := s.client.Register(ctx, &authv1.RegisterRequest{Username: username, Email: email, Password: password})
	if err != nil {
		return nil, mapError(err)
	}
	return resp, nil
}

// Login authenticates and keeps the returned token for later calls.
func (s *GRPCClient) Login(ctx context.Context, username, password string) (*authv1.LoginResponse, error) {
	resp, err := s.client.Login(ctx, &authv1.LoginRequest{Username: username, Password: password})
	if err != nil {
		return nil, mapError(err)
	}
	s.SetToken(resp.AccessToken)
	return resp, nil
}

func (s *GRPCClient) ChangePassword(ctx context.Context, current, next string) (*authv1.ChangePasswordResponse, error) {
	if s.Token() == "" {
		return nil, ErrNotLoggedIn
	}
	resp, err := s.client.ChangePassword(ctx, &authv1.ChangePasswordRequest{CurrentPassword: current, NewPassword: next})
	if err != nil {
		return nil, mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) WhoAmI(ctx context.Context) (*authv1.User, error) {
	if s.Token() == "" {
		return nil, ErrNotLoggedIn
	}
	resp, err := s.client.WhoAmI(ctx, &authv1.WhoAmIRequest{})
	if err != nil {
		return nil, mapError(err)
	}
	return resp.User, nil
}

func (s *GRPCClient) Strength(ctx context.Context, password string) (authv1.Strength, error) {
	resp, err := s.client.Strength(ctx, &authv1.StrengthRequest{Password: password})
	if err != nil {
		return authv1.Strength{}, mapError(err)
	}
	return resp.Strength, nil
}

// mapError turns a status error into a sentinel wrapped with the server
// message.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.ResourceExhausted:
		return fmt.Errorf("%w: %s", ErrLocked, st.Message())
	case codes.InvalidArgument, codes.FailedPrecondition, codes.AlreadyExists:
		return fmt.Errorf("%w: %s", ErrRejected, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
