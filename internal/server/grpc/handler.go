package grpc

import (
	"context"

	authv1 "github.com/dmitrijs2005/gophauth/internal/api/authv1"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/password"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var _ authv1.AuthServiceServer = (*GRPCServer)(nil)

// codeFor maps a failure kind to the status code returned to clients.
func codeFor(kind common.Kind) codes.Code {
	switch kind {
	case common.KindNone:
		return codes.OK
	case common.KindValidation, common.KindPolicyViolation:
		return codes.InvalidArgument
	case common.KindDuplicateIdentity:
		return codes.AlreadyExists
	case common.KindRegistrationFailed, common.KindPasswordReused:
		return codes.FailedPrecondition
	case common.KindNotFound:
		return codes.NotFound
	case common.KindInvalidCredentials, common.KindUnauthenticated:
		return codes.Unauthenticated
	case common.KindAccountLocked:
		return codes.ResourceExhausted
	default:
		return codes.Internal
	}
}

func failure(kind common.Kind, msg string) error {
	return status.Error(codeFor(kind), msg)
}

func toUser(v *models.UserView) *authv1.User {
	if v == nil {
		return nil
	}
	return &authv1.User{
		ID:        v.ID,
		Username:  v.Username,
		Email:     v.Email,
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
	}
}

func toStrength(s password.Strength) authv1.Strength {
	return authv1.Strength{Entropy: s.Entropy, Level: string(s.Level)}
}

func (s *GRPCServer) Ping(ctx context.Context, req *authv1.PingRequest) (*authv1.PingResponse, error) {
	return &authv1.PingResponse{Status: "OK"}, nil
}

func (s *GRPCServer) Register(ctx context.Context, req *authv1.RegisterRequest) (*authv1.RegisterResponse, error) {
	res := s.auth.Register(ctx, req.Username, req.Email, req.Password)
	if !res.Success {
		return nil, failure(res.Kind, res.Message)
	}

	resp := &authv1.RegisterResponse{Message: res.Message, User: toUser(res.User)}
	if res.Strength != nil {
		st := toStrength(*res.Strength)
		resp.Strength = &st
	}
	return resp, nil
}

func (s *GRPCServer) Login(ctx context.Context, req *authv1.LoginRequest) (*authv1.LoginResponse, error) {
	res := s.auth.Login(ctx, req.Username, req.Password)
	if !res.Success {
		return nil, failure(res.Kind, res.Message)
	}
	return &authv1.LoginResponse{Message: res.Message, AccessToken: res.Token, User: toUser(res.User)}, nil
}

func (s *GRPCServer) ChangePassword(ctx context.Context, req *authv1.ChangePasswordRequest) (*authv1.ChangePasswordResponse, error) {
	username, ok := UsernameFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	res := s.auth.ChangePassword(ctx, username, req.CurrentPassword, req.NewPassword)
	if !res.Success {
		return nil, failure(res.Kind, res.Message)
	}
	return &authv1.ChangePasswordResponse{Message: res.Message}, nil
}

func (s *GRPCServer) WhoAmI(ctx context.Context, req *authv1.WhoAmIRequest) (*authv1.WhoAmIResponse, error) {
	username, ok := UsernameFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	view, err := s.auth.Profile(ctx, username)
	if err != nil {
		kind := common.KindOf(err)
		if kind == common.KindNotFound {
			// token outlived its user
			return nil, status.Error(codes.Unauthenticated, "unknown user")
		}
		s.logger.Error(ctx, "profile lookup failed", logging.ErrorAttrs(err)...)
		return nil, failure(kind, "internal error")
	}
	return &authv1.WhoAmIResponse{User: toUser(view)}, nil
}

func (s *GRPCServer) Strength(ctx context.Context, req *authv1.StrengthRequest) (*authv1.StrengthResponse, error) {
	return &authv1.StrengthResponse{Strength: toStrength(s.auth.Strength(req.Password))}, nil
}
