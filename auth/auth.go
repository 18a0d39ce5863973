package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for expired, malformed or forged tokens.
var ErrInvalidToken = errors.New("invalid auth token")

// Claims carry the end-user identity inside a signed bearer token. These
// tokens are unrelated to node session tokens.
type Claims struct {
	UserID uint64 `json:"userId"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

type Config struct {
	Secret []byte
	TTL    time.Duration
}

// Service issues and verifies signed, time-limited end-user bearer tokens.
type Service struct {
	secret []byte
	ttl    time.Duration
}

func New(config *Config) *Service {
	service := &Service{
		secret: config.Secret,
		ttl:    config.TTL,
	}

	if service.ttl == 0 {
		service.ttl = 2 * time.Hour
	}

	return service
}

func (s *Service) Issue(userID uint64, name string) (string, error) {
	now := time.Now()

	claims := &Claims{
		UserID: userID,
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Service) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}

		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
