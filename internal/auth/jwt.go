package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "mmo-region"

var (
	// ErrWeakSecret ключ короче 32 байт
	ErrWeakSecret = errors.New("secret key must be at least 32 bytes")
	// ErrInvalidToken токен не прошёл проверку
	ErrInvalidToken = errors.New("invalid token")
)

// Claims содержимое токена оператора админского API
type Claims struct {
	Operator string `json:"operator"`
	jwt.RegisteredClaims
}

// Authenticator выдаёт и проверяет HS256-токены операторов
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

// NewAuthenticator принимает ключ в base64, как его хранят в окружении
func NewAuthenticator(secret string) (*Authenticator, error) {
	decoded, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("decode secret: %w", err)
	}
	if len(decoded) < 32 {
		return nil, ErrWeakSecret
	}
	return &Authenticator{secret: decoded, now: time.Now}, nil
}

// Issue подписывает токен оператора со сроком ttl
func (a *Authenticator) Issue(operator string, ttl time.Duration) (string, error) {
	now := a.now()
	claims := &Claims{
		Operator: operator,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   operator,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Validate проверяет подпись, срок и издателя
func (a *Authenticator) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Operator == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
