package ledger

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Credential is the admin capability presented with admin and override
// calls.
type Credential string

// Authorizer checks admin credentials.
type Authorizer interface {
	Authorize(cred Credential) bool
}

type denyAll struct{}

func (denyAll) Authorize(Credential) bool { return false }

// BcryptAuthorizer accepts the single secret whose bcrypt hash it holds.
type BcryptAuthorizer struct {
	hash []byte
}

// NewBcryptAuthorizer creates an authorizer from a bcrypt hash.
func NewBcryptAuthorizer(hash []byte) (*BcryptAuthorizer, error) {
	if _, err := bcrypt.Cost(hash); err != nil {
		return nil, fmt.Errorf("invalid admin credential hash: %w", err)
	}
	return &BcryptAuthorizer{hash: hash}, nil
}

// HashCredential hashes secret for NewBcryptAuthorizer. A zero cost uses
// bcrypt.DefaultCost.
func HashCredential(secret string, cost int) ([]byte, error) {
	if secret == "" {
		return nil, fmt.Errorf("admin credential must not be empty")
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return bcrypt.GenerateFromPassword([]byte(secret), cost)
}

// Authorize reports whether cred matches the stored hash.
func (a *BcryptAuthorizer) Authorize(cred Credential) bool {
	if cred == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(a.hash, []byte(cred)) == nil
}

func (e *Engine) authorize(cred Credential) error {
	if !e.auth.Authorize(cred) {
		return newError(KindBadCredential, "admin credential rejected")
	}
	return nil
}
