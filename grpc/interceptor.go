// Package grpc verifies pairauth access tokens on gRPC requests. Clients
// put the raw access token in request metadata; the interceptors verify
// it with the shared SessionManager and attach the session to the handler
// context.
package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/pairauth/pairauth"
)

// DefaultTokenMetadataKey is the metadata key carrying the access token.
const DefaultTokenMetadataKey = "x-auth-token"

// InterceptorConfig configures the auth interceptor behavior.
type InterceptorConfig struct {
	// Sessions verifies the tokens. Required.
	Sessions *pairauth.SessionManager

	// TokenMetadataKey overrides DefaultTokenMetadataKey.
	TokenMetadataKey string

	// RequireAuth when true rejects unauthenticated requests. When false,
	// requests proceed and SessionFromContext returns nil.
	RequireAuth bool

	// PublicMethods is a set of full method names (e.g.
	// "/package.Service/Method") exempt from RequireAuth.
	PublicMethods map[string]bool
}

func (c *InterceptorConfig) tokenKey() string {
	if c.TokenMetadataKey != "" {
		return c.TokenMetadataKey
	}
	return DefaultTokenMetadataKey
}

// UnaryAuthInterceptor returns a gRPC unary interceptor that verifies the
// access token metadata.
func UnaryAuthInterceptor(config *InterceptorConfig) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, err := config.authenticate(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamAuthInterceptor returns a gRPC stream interceptor that verifies
// the access token metadata.
func StreamAuthInterceptor(config *InterceptorConfig) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := config.authenticate(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedStream{ServerStream: ss, ctx: ctx})
	}
}

// authenticate verifies the token, if any, and returns a context carrying
// the session. Failures map to Unauthenticated only when the method
// requires auth.
func (c *InterceptorConfig) authenticate(ctx context.Context, fullMethod string) (context.Context, error) {
	required := c.RequireAuth && !c.PublicMethods[fullMethod]

	token := tokenFromMetadata(ctx, c.tokenKey())
	if token == "" {
		if required {
			return nil, status.Error(codes.Unauthenticated, "authentication required")
		}
		return ctx, nil
	}

	session, err := c.Sessions.VerifySessionToken(token)
	if err != nil {
		if required {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		return ctx, nil
	}
	return pairauth.ContextWithSession(ctx, session), nil
}

func tokenFromMetadata(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}

// SessionFromContext returns the verified session attached by the
// interceptors, or nil.
func SessionFromContext(ctx context.Context) *pairauth.Session {
	return pairauth.SessionFromContext(ctx)
}

// UserIDFromContext returns the authenticated user id, or "".
func UserIDFromContext(ctx context.Context) string {
	if session := pairauth.SessionFromContext(ctx); session != nil {
		return session.UserID
	}
	return ""
}

// wrappedStream overrides the stream context with the authenticated one.
type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedStream) Context() context.Context { return w.ctx }
