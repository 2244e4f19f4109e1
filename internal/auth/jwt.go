package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/monocle-dev/scrumboard/internal/types"
)

const SessionTTL = 7 * 24 * time.Hour

var (
	sessionSecret []byte

	ErrInvalidToken = errors.New("invalid or expired session")
)

func InitSessionSecret(secret string) error {
	if secret == "" {
		return fmt.Errorf("session secret is empty")
	}
	sessionSecret = []byte(secret)
	return nil
}

func GenerateSessionToken(userID uint, role types.GlobalRole) (string, error) {
	if len(sessionSecret) == 0 {
		return "", fmt.Errorf("session secret is not initialised")
	}

	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    string(role),
		"iat":     time.Now().Unix(),
		"exp":     time.Now().Add(SessionTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(sessionSecret)
}

// VerifySessionToken checks the signature and expiry and returns the user id.
func VerifySessionToken(tokenString string) (uint, error) {
	if len(sessionSecret) == 0 {
		return 0, ErrInvalidToken
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return sessionSecret, nil
	}, jwt.WithExpirationRequired())

	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)

	if !ok {
		return 0, ErrInvalidToken
	}

	userIDFloat, ok := claims["user_id"].(float64)

	if !ok || userIDFloat <= 0 {
		return 0, ErrInvalidToken
	}

	return uint(userIDFloat), nil
}
