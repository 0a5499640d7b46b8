package security

import (
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"golang.org/x/crypto/bcrypt"
)

// AdminGuard authenticates management endpoints with a shared token
// carried in the X-Admin-Token header, compared against a bcrypt hash
// so the plaintext token never sits in the environment.
type AdminGuard struct {
	tokenHash string
}

func NewAdminGuard(tokenHash string) *AdminGuard {
	return &AdminGuard{tokenHash: tokenHash}
}

func (g *AdminGuard) Require() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if g.tokenHash == "" {
			return apis.NewForbiddenError("Admin access is not configured", nil)
		}
		token := e.Request.Header.Get("X-Admin-Token")
		if token == "" {
			return apis.NewUnauthorizedError("Admin token required", nil)
		}
		if err := bcrypt.CompareHashAndPassword([]byte(g.tokenHash), []byte(token)); err != nil {
			return apis.NewUnauthorizedError("Invalid admin token", nil)
		}
		return e.Next()
	}
}
