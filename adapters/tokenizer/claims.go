package tokenizer

import "github.com/golang-jwt/jwt/v5"

// CredentialClaims combines standard claims with the session binding.
type CredentialClaims struct {
	jwt.RegisteredClaims
	SessionID   string   `json:"sid"`
	ActiveToken string   `json:"tkn"`
	Permissions []string `json:"perms"`
}
