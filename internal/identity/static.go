package identity

import (
	"context"
	"strings"

	"github.com/atkt1/rzgateway/internal/models"
	pkgauth "github.com/atkt1/rzgateway/pkg/auth"
)

// StaticAuthenticator verifies credentials against a single configured
// account. Development and single-tenant installs use it in place of the
// upstream identity service.
type StaticAuthenticator struct {
	email        string
	passwordHash string
}

// NewStaticAuthenticator creates an authenticator for the configured
// email and bcrypt password hash
func NewStaticAuthenticator(email, passwordHash string) *StaticAuthenticator {
	return &StaticAuthenticator{
		email:        strings.ToLower(strings.TrimSpace(email)),
		passwordHash: passwordHash,
	}
}

// Authenticate checks the credentials against the configured account. The
// hash comparison runs even for unknown emails so both rejections take the
// same time.
func (a *StaticAuthenticator) Authenticate(ctx context.Context, email, password string) error {
	compareErr := pkgauth.ComparePassword(a.passwordHash, password)

	if !strings.EqualFold(strings.TrimSpace(email), a.email) {
		return models.ErrUnauthorized
	}
	if compareErr != nil {
		return models.ErrUnauthorized
	}

	return nil
}
