package middleware

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ontime/billsplit/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// AddressKey is the context key for the authenticated wallet address.
const AddressKey contextKey = "address"

// GetAddress extracts the authenticated address from the context.
// Returns the zero address and false if the request is unauthenticated.
func GetAddress(ctx context.Context) (common.Address, bool) {
	addr, ok := ctx.Value(AddressKey).(common.Address)
	return addr, ok
}

// WithAddress attaches an authenticated address to ctx.
func WithAddress(ctx context.Context, addr common.Address) context.Context {
	return context.WithValue(ctx, AddressKey, addr)
}

// RequireAuth returns a middleware that validates JWT tokens and requires authentication
// for every procedure except those listed in public.
func RequireAuth(jwtManager *auth.JWTManager, public ...string) connect.UnaryInterceptorFunc {
	open := make(map[string]bool, len(public))
	for _, p := range public {
		open[p] = true
	}
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if open[req.Spec().Procedure] {
				return next(authenticate(ctx, jwtManager, req.Header().Get("Authorization")), req)
			}

			authHeader := req.Header().Get("Authorization")
			if authHeader == "" {
				return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
			}

			tokenString, ok := bearerToken(authHeader)
			if !ok {
				return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidToken)
			}

			claims, err := jwtManager.Validate(tokenString)
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}
			if !common.IsHexAddress(claims.Address) {
				return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidToken)
			}

			return next(WithAddress(ctx, common.HexToAddress(claims.Address)), req)
		}
	}
}

// OptionalAuth returns a middleware that validates JWT tokens if present, but allows
// requests without authentication.
func OptionalAuth(jwtManager *auth.JWTManager) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			return next(authenticate(ctx, jwtManager, req.Header().Get("Authorization")), req)
		}
	}
}

// authenticate adds the token's address to ctx when the header carries a valid token.
func authenticate(ctx context.Context, jwtManager *auth.JWTManager, header string) context.Context {
	tokenString, ok := bearerToken(header)
	if !ok {
		return ctx
	}
	claims, err := jwtManager.Validate(tokenString)
	if err != nil || !common.IsHexAddress(claims.Address) {
		return ctx
	}
	return WithAddress(ctx, common.HexToAddress(claims.Address))
}

func bearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
