package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims are the JWT claims carried by the dashboard session cookie.
// The gateway never learns upstream account IDs, so the email is the
// session's identity.
type SessionClaims struct {
	Type  string `json:"type"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}
