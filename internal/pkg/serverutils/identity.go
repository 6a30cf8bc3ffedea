package serverutils

import (
	"fmt"
	"time"

	"hiring-chat-be/internal/entity"
	"hiring-chat-be/pkg/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	LocalsIdentity = "identity"
	LocalsUserID   = "user_id"
)

// ParseIdentityToken validates an HMAC-signed token and reads the user_id and
// role claims into an Identity.
func ParseIdentityToken(tokenStr, secret string) (entity.Identity, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return entity.Identity{}, fmt.Errorf("%w: invalid token", apperr.ErrUnauthorized)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return entity.Identity{}, fmt.Errorf("%w: invalid token claims", apperr.ErrUnauthorized)
	}

	userIDStr, _ := claims["user_id"].(string)
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return entity.Identity{}, fmt.Errorf("%w: token missing user_id", apperr.ErrUnauthorized)
	}

	role, _ := claims["role"].(string)
	kind, err := entity.ParseParticipantKind(role)
	if err != nil {
		return entity.Identity{}, fmt.Errorf("%w: %v", apperr.ErrUnauthorized, err)
	}

	return entity.Identity{UserId: userID, Kind: kind}, nil
}

// SignIdentityToken issues a token ParseIdentityToken accepts. Real tokens come
// from the auth service; this exists for local tooling and tests.
func SignIdentityToken(identity entity.Identity, secret string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": identity.UserId.String(),
		"role":    string(identity.Kind),
		"exp":     time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// TokenFromRequest prefers the token query parameter (browsers cannot set
// headers on a websocket upgrade) and falls back to the Bearer header.
func TokenFromRequest(ctx *fiber.Ctx) string {
	if token := ctx.Query("token"); token != "" {
		return token
	}
	authHeader := ctx.Get("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		return authHeader[7:]
	}
	return ""
}

// IdentityFromLocals returns the identity JwtMiddleware attached.
func IdentityFromLocals(ctx *fiber.Ctx) (entity.Identity, error) {
	identity, ok := ctx.Locals(LocalsIdentity).(entity.Identity)
	if !ok || identity.IsZero() {
		return entity.Identity{}, apperr.ErrUnauthorized
	}
	return identity, nil
}
