// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"customer/config"
	"customer/internal/domain/service"
)

// jwtService is a concrete implementation of the TokenService interface using the JWT standard.
type jwtService struct {
	secret string        // Secret key for signing and validating tokens.
	ttl    time.Duration // Time-to-live for generated tokens.
}

// NewJWTService is the constructor for jwtService.
// It takes configuration values to create a new token service instance.
func NewJWTService(cfg *config.Config) (service.TokenService, error) {
	if cfg.Auth == nil || cfg.Auth.Secret == "" {
		return nil, errors.New("jwt secret must be provided")
	}

	return &jwtService{
		secret: cfg.Auth.Secret,
		ttl:    time.Minute * 15,
	}, nil
}

// GenerateToken creates a signed token carrying the subject and granted scopes.
// Issuance normally lives with the identity provider; this exists for local
// development and tests.
func (s *jwtService) GenerateToken(subject string, scopes []string) (string, error) {
	claims := jwt.MapClaims{
		"sub": subject,                      // Subject (who the token is for)
		"iat": time.Now().Unix(),            // Issued At
		"exp": time.Now().Add(s.ttl).Unix(), // Expiration Time
	}
	if scopes != nil {
		claims["scopes"] = scopes
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString([]byte(s.secret))
}

// ValidateToken checks the token signature and expiry and extracts the
// caller's identity and granted scopes.
func (s *jwtService) ValidateToken(tokenString string) (*service.TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		// Ensure the signing method is what we expect.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}

		return []byte(s.secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, jwt.ErrTokenInvalidClaims
	}

	claims := &service.TokenClaims{}
	if sub, err := mapClaims.GetSubject(); err == nil {
		claims.Subject = sub
	}
	if raw, ok := mapClaims["scopes"].([]any); ok {
		for _, s := range raw {
			if scope, ok := s.(string); ok {
				claims.Scopes = append(claims.Scopes, scope)
			}
		}
	}

	return claims, nil
}
