// ABOUTME: gRPC interceptor authenticating control channel calls with bearer JWTs
// ABOUTME: Extracts the token from metadata and populates context for handlers

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// logAuthFailure logs an authentication failure with structured context.
func logAuthFailure(logger *slog.Logger, ctx context.Context, reason string, attrs ...any) {
	if logger == nil {
		return
	}
	baseAttrs := []any{"reason", reason}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		baseAttrs = append(baseAttrs, "peer_addr", p.Addr.String())
	}
	baseAttrs = append(baseAttrs, attrs...)
	logger.Warn("auth failure", baseAttrs...)
}

// BearerMetadata returns outgoing metadata carrying token
func BearerMetadata(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

// UnaryInterceptor returns a gRPC unary interceptor that authenticates requests.
// When requireAdmin is set, tokens without the admin claim are rejected.
func UnaryInterceptor(tokens TokenVerifier, requireAdmin bool, logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		claims, err := extractClaims(ctx, tokens, logger)
		if err != nil {
			return nil, err
		}
		if requireAdmin && !claims.IsAdmin() {
			logAuthFailure(logger, ctx, "not_admin", "email", claims.Email, "method", info.FullMethod)
			return nil, status.Error(codes.PermissionDenied, "admin token required")
		}
		return handler(WithClaims(ctx, claims), req)
	}
}

func extractClaims(ctx context.Context, tokens TokenVerifier, logger *slog.Logger) (*Claims, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		logAuthFailure(logger, ctx, "missing_metadata")
		return nil, status.Error(codes.Unauthenticated, "missing metadata")
	}

	authHeaders := md.Get("authorization")
	if len(authHeaders) == 0 {
		logAuthFailure(logger, ctx, "missing_authorization")
		return nil, status.Error(codes.Unauthenticated, "missing authorization header")
	}
	if !strings.HasPrefix(authHeaders[0], "Bearer ") {
		logAuthFailure(logger, ctx, "bad_authorization_format")
		return nil, status.Error(codes.Unauthenticated, "invalid authorization header format")
	}

	claims, err := tokens.Verify(strings.TrimPrefix(authHeaders[0], "Bearer "))
	if errors.Is(err, ErrExpiredToken) {
		logAuthFailure(logger, ctx, "token_expired")
		return nil, status.Error(codes.Unauthenticated, "token expired")
	}
	if err != nil {
		logAuthFailure(logger, ctx, "jwt_auth_failed", "error", err.Error())
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}
	return claims, nil
}
