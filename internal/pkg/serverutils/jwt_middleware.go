package serverutils

import (
	"fmt"
	"time"

	"chatsync-be/pkg/apperror"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const userIdLocal = "user_id"

// ParseUserToken validates an HS256 token and returns its user_id claim.
func ParseUserToken(secret, tokenStr string) (uuid.UUID, error) {
	if tokenStr == "" {
		return uuid.Nil, apperror.Auth("missing token")
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, apperror.Wrap(apperror.KindAuth, "invalid token", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, apperror.Auth("invalid claims")
	}

	userIdStr, ok := claims["user_id"].(string)
	if !ok {
		return uuid.Nil, apperror.Auth("token missing user_id")
	}
	userId, err := uuid.Parse(userIdStr)
	if err != nil {
		return uuid.Nil, apperror.Auth("invalid user id format in token")
	}
	return userId, nil
}

// IssueUserToken signs a token carrying user_id. Real credentials are issued
// by the auth service; this exists for tooling and tests.
func IssueUserToken(secret string, userId uuid.UUID, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userId.String(),
		"exp":     time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func BearerToken(ctx *fiber.Ctx) string {
	authHeader := ctx.Get("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		return authHeader[7:]
	}
	return ""
}

func NewJwtMiddleware(secret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		userId, err := ParseUserToken(secret, BearerToken(ctx))
		if err != nil {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, err.Error()))
		}
		ctx.Locals(userIdLocal, userId)
		return ctx.Next()
	}
}

// UserIdFromContext reads the id stored by the JWT middleware.
func UserIdFromContext(ctx *fiber.Ctx) (uuid.UUID, error) {
	userId, ok := ctx.Locals(userIdLocal).(uuid.UUID)
	if !ok || userId == uuid.Nil {
		return uuid.Nil, apperror.Auth("unauthorized")
	}
	return userId, nil
}
