package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims is the accepted JWT shape. The user id travels in the registered
// "sub" claim, matching tokens minted by the hosted auth provider. TokenType is
// optional on access tokens (provider tokens omit it) but always set on tokens
// issued by Manager.
type Claims struct {
	jwt.RegisteredClaims

	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role,omitempty"`
	TokenType TokenType `json:"token_type,omitempty"`
}
