// Package security provides JWT token utilities and secure generation.
// Tokens are issued by the external identity collaborator; this package
// only validates them and extracts the role claim that gates admin routes.
package security

import (
	"errors"

	"github.com/golang-jwt/jwt/v4"
)

// Roles recognized in the role claim of admin tokens.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
)

// ValidateJWT validates a JWT token and returns the claims
func ValidateJWT(tokenString, jwtSecret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// RoleFromClaims extracts the role claim, empty when absent.
func RoleFromClaims(claims jwt.MapClaims) string {
	if role, ok := claims["role"].(string); ok {
		return role
	}
	return ""
}

// SubjectFromClaims extracts the subject (actor username), empty when absent.
func SubjectFromClaims(claims jwt.MapClaims) string {
	if sub, ok := claims["sub"].(string); ok {
		return sub
	}
	return ""
}
