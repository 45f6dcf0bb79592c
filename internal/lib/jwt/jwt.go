package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingAuthHeader  = errors.New("missing Authorization header")
	ErrInvalidAuthHeader  = errors.New("invalid Authorization header")
	ErrInvalidToken       = errors.New("invalid token")
	ErrMissingUserIDClaim = errors.New("uid missing in token")
)

type JWTParser struct {
	Secret string
}

func New(secret string) *JWTParser {
	return &JWTParser{
		Secret: secret,
	}
}

// * ParseToken извлекает userID из заголовка Authorization вида "Bearer <token>"
func (p *JWTParser) ParseToken(authHeader string) (int64, error) {
	if authHeader == "" {
		return 0, ErrMissingAuthHeader
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return 0, ErrInvalidAuthHeader
	}

	token, err := jwt.Parse(strings.TrimSpace(parts[1]), func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(p.Secret), nil
	})
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidToken
	}

	uid, ok := claims["uid"].(float64)
	if !ok {
		return 0, ErrMissingUserIDClaim
	}

	return int64(uid), nil
}

// * NewToken выпускает токен для userID, используется командой token
func (p *JWTParser) NewToken(userID int64, ttl time.Duration) (string, error) {
	const op = "lib.jwt.NewToken"

	claims := jwt.MapClaims{
		"uid": userID,
		"exp": time.Now().Add(ttl).Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(p.Secret))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}
