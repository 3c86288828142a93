package service

import (
	"fmt"
	"time"

	"github.com/gestorpj/fiscal-engine-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// AuthService validates and signs the HS256 access tokens that scope every
// request to a company. Token issuance lives in the identity service; this
// engine only needs the shared secret.
type AuthService struct {
	jwtSecret []byte
	accessTTL time.Duration
}

// NewAuthService creates the token service.
func NewAuthService(jwtSecret string, accessTTL time.Duration) *AuthService {
	return &AuthService{jwtSecret: []byte(jwtSecret), accessTTL: accessTTL}
}

// JWTClaims represents the custom claims in access tokens. Sub is the
// company id; Privileged gates maintenance endpoints.
type JWTClaims struct {
	Sub        string `json:"sub"`
	Privileged bool   `json:"privileged"`
	Type       string `json:"type"`
	jwt.RegisteredClaims
}

func (s *AuthService) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "Token inválido ou expirado"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "Token inválido"}
	}

	if claims.Type != "access" {
		return nil, &domain.ErrUnauthorized{Message: "Tipo de token inválido"}
	}

	return claims, nil
}

// SignAccessToken issues a token for a company. Used by tests and local
// tooling; production tokens come from the identity service.
func (s *AuthService) SignAccessToken(companyID string, privileged bool) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		Sub:        companyID,
		Privileged: privileged,
		Type:       "access",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			Issuer:    "fiscal-engine",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
