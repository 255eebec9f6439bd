package promo

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"
)

// stampSecret is the fixed application half of the stamp key. It is
// compiled in and never transmitted; combined with the per-install
// identity it makes stamps non-portable between installations.
const stampSecret = "promogate-entitlement-stamp-v1"

// IntegrityGuard computes and verifies a keyed hash over the persisted
// entitlement grant to detect out-of-band modification of the stored
// flags.
type IntegrityGuard struct {
	key []byte
}

// NewIntegrityGuard derives the stamp key from the install identity and
// the application secret via HKDF-SHA256.
func NewIntegrityGuard(installID string) (*IntegrityGuard, error) {
	kdf := hkdf.New(sha256.New, []byte(stampSecret), []byte(installID), []byte("entitlement-stamp"))
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive stamp key: %w", err)
	}
	return &IntegrityGuard{key: key}, nil
}

// Stamp returns the hex-encoded HMAC-SHA256 over the canonical
// serialization of the grant.
func (g *IntegrityGuard) Stamp(grant EntitlementGrant) string {
	mac := hmac.New(sha256.New, g.key)
	mac.Write([]byte(canonicalGrant(grant)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether the stamp matches the grant. Comparison is
// constant-time.
func (g *IntegrityGuard) Verify(grant EntitlementGrant, stamp string) bool {
	expected, err := hex.DecodeString(g.Stamp(grant))
	if err != nil {
		return false
	}
	actual, err := hex.DecodeString(stamp)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, actual)
}

// canonicalGrant is the byte-stable serialization the stamp covers. The
// JSON encoding is not used here so that field-order or whitespace
// differences can never invalidate a legitimate stamp.
func canonicalGrant(grant EntitlementGrant) string {
	expires := "-"
	if grant.ExpiresAt != nil {
		expires = grant.ExpiresAt.UTC().Format(time.RFC3339Nano)
	}
	return string(grant.Type) + "|" + expires
}
