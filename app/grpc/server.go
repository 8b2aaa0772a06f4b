package grpc

import (
	"context"
	"errors"

	"github.com/vibast-solutions/ms-go-accounts/app/service"
	"github.com/vibast-solutions/ms-go-accounts/app/types"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type accountSessions interface {
	AuthenticateAccess(tokenString string) (uint64, error)
	Me(ctx context.Context, accountID uint64) (*types.AccountResponse, error)
}

type TokenServer struct {
	sessions accountSessions
}

func NewTokenServer(sessions accountSessions) *TokenServer {
	return &TokenServer{sessions: sessions}
}

// ValidateAccessToken never fails for a bad token; it reports valid=false.
func (s *TokenServer) ValidateAccessToken(_ context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "access token is required")
	}

	accountID, err := s.sessions.AuthenticateAccess(req.GetValue())
	if err != nil {
		logrus.Debug("Access token rejected (grpc)")
		return structpb.NewStruct(map[string]any{"valid": false})
	}

	return structpb.NewStruct(map[string]any{
		"valid":      true,
		"account_id": accountID,
	})
}

func (s *TokenServer) GetAccount(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	accountID, ok := AccountIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}

	account, err := s.sessions.Me(ctx, accountID)
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			logrus.WithField("account_id", accountID).Warn("Get account failed: account no longer exists (grpc)")
			return nil, status.Error(codes.Unauthenticated, "unauthorized")
		}
		logrus.WithError(err).WithField("account_id", accountID).Error("Get account failed (grpc)")
		return nil, status.Error(codes.Internal, "internal server error")
	}

	return structpb.NewStruct(map[string]any{
		"id":                 account.ID,
		"email":              account.Email,
		"first_name":         account.FirstName,
		"last_name":          account.LastName,
		"confirmed":          account.Confirmed,
		"two_factor_enabled": account.TwoFactorEnabled,
		"created_at":         account.CreatedAt,
		"updated_at":         account.UpdatedAt,
	})
}
