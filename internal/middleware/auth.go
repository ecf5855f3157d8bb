package middleware

import (
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/tilebid/backend/api/transport"
	"github.com/tilebid/backend/domain"
)

const (
	userIDHeader   = "X-User-ID"
	userRoleHeader = "X-User-Role"
)

// JWTAuth validates the bearer token and forwards the caller identity to
// handlers via X-User-ID / X-User-Role. Any client-supplied copies of
// those headers are stripped before the token is inspected.
func JWTAuth(secret string, logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			ctx.Request.Header.Del(userIDHeader)
			ctx.Request.Header.Del(userRoleHeader)

			tokenString := extractToken(ctx)
			if tokenString == "" {
				reject(ctx, "missing bearer token")
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				logger.Warn("invalid jwt token", zap.Error(err))
				reject(ctx, "invalid token")
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				reject(ctx, "invalid token")
				return
			}
			userID, _ := claims["user_id"].(string)
			if userID == "" {
				userID, _ = claims["sub"].(string)
			}
			if userID == "" {
				reject(ctx, "token carries no user identity")
				return
			}
			ctx.Request.Header.Set(userIDHeader, userID)
			if role, ok := claims["role"].(string); ok && role != "" {
				ctx.Request.Header.Set(userRoleHeader, role)
			}

			next(ctx)
		}
	}
}

func reject(ctx *fasthttp.RequestCtx, message string) {
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusUnauthorized)
	envelope := transport.NewError(string(domain.ErrCodeUnauthorized), message, nil)
	ctx.SetBodyString(envelope.String())
}

func extractToken(ctx *fasthttp.RequestCtx) string {
	header := string(ctx.Request.Header.Peek("Authorization"))
	if header == "" {
		return ""
	}
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return header
}
