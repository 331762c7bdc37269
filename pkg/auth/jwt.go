package auth

import (
	"errors"
	"time"

	"triad-service/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

const ScopeUser = "user"

type Claims struct {
	SubjectID int64  `json:"subjectId"`
	Scope     string `json:"scope"`
	jwt.RegisteredClaims
}

func GenerateToken(userID int64) (string, time.Time, error) {
	duration := time.Duration(config.GlobalConfig.JWT.Expire) * time.Hour
	expireAt := time.Now().Add(duration)
	claims := Claims{
		SubjectID: userID,
		Scope:     ScopeUser,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expireAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   ScopeUser,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(config.GlobalConfig.JWT.Secret))
	return signed, expireAt, err
}

func ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(config.GlobalConfig.JWT.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ParseUserToken accepts only tokens issued for players.
func ParseUserToken(tokenString string) (*Claims, error) {
	claims, err := ParseToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Scope != ScopeUser || claims.SubjectID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
