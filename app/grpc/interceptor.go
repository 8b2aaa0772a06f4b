package grpc

import (
	"context"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/middleware"

	"github.com/sirupsen/logrus"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type accountIDKey struct{}

type accessTokenAuthenticator interface {
	AuthenticateAccess(tokenString string) (uint64, error)
}

// AccessTokenUnaryInterceptor requires "authorization: Bearer <token>" metadata
// on every method except the public ones.
func AccessTokenUnaryInterceptor(sessions accessTokenAuthenticator, publicMethods ...string) gogrpc.UnaryServerInterceptor {
	public := make(map[string]struct{}, len(publicMethods))
	for _, method := range publicMethods {
		public[method] = struct{}{}
	}

	return func(ctx context.Context, req any, info *gogrpc.UnaryServerInfo, handler gogrpc.UnaryHandler) (any, error) {
		if _, ok := public[info.FullMethod]; ok {
			return handler(ctx, req)
		}

		tokenString, ok := middleware.BearerToken(incomingAuthorization(ctx))
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "unauthorized")
		}

		accountID, err := sessions.AuthenticateAccess(tokenString)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "unauthorized")
		}

		return handler(context.WithValue(ctx, accountIDKey{}, accountID), req)
	}
}

func AccountIDFromContext(ctx context.Context) (uint64, bool) {
	accountID, ok := ctx.Value(accountIDKey{}).(uint64)
	return accountID, ok && accountID != 0
}

func LoggingUnaryInterceptor() gogrpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *gogrpc.UnaryServerInfo, handler gogrpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		entry := logrus.WithFields(logrus.Fields{
			"method":     info.FullMethod,
			"code":       status.Code(err).String(),
			"latency":    time.Since(start).String(),
			"latency_ns": time.Since(start).Nanoseconds(),
		})
		if err != nil {
			entry = entry.WithError(err)
		}
		entry.Info("grpc_request")
		return resp, err
	}
}

func incomingAuthorization(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}
