package auth

import (
	"errors"
	"time"

	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/persistence"
)

const revokedPrefix = "revoked/"

// RevocationList remembers logged-out token IDs until the token would have
// expired anyway.
type RevocationList struct {
	engine persistence.Engine
	now    func() time.Time
}

func NewRevocationList(engine persistence.Engine) *RevocationList {
	return &RevocationList{engine: engine, now: time.Now}
}

// Revoke marks jti as unusable until expiresAt. Tokens already past expiry
// are ignored.
func (r *RevocationList) Revoke(jti string, expiresAt time.Time) error {
	if jti == "" {
		return ErrTokenInvalid
	}
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	return r.engine.SetWithTTL(revokedPrefix+jti, []byte{1}, ttl)
}

func (r *RevocationList) IsRevoked(jti string) (bool, error) {
	_, err := r.engine.Get(revokedPrefix + jti)
	if errors.Is(err, persistence.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
