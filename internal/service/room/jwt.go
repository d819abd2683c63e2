package room

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type connectClaims struct {
	SessionId string `json:"session_id"`
	jwt.RegisteredClaims
}

func (s service) generateConnectToken(sessionId string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, connectClaims{
		SessionId: sessionId,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(10 * time.Minute)),
		},
	})

	return token.SignedString([]byte(s.secret))
}

func (s service) parseConnectToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &connectClaims{}, func(token *jwt.Token) (any, error) {
		return []byte(s.secret), nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*connectClaims)
	if !ok || !token.Valid || claims.SessionId == "" {
		return "", errors.New("invalid token")
	}

	return claims.SessionId, nil
}
