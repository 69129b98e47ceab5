// internal/tracking/codec.go
package tracking

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// tokenLength is the number of hex characters kept from the HMAC digest.
// Long enough to make forging an open event impractical, short enough to
// keep tracking URLs compact.
const tokenLength = 16

// NewTrackingID returns a random URL-safe identifier with 128 bits of
// entropy. Unique per delivery record, immutable once assigned.
func NewTrackingID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return hex.EncodeToString(b)
}

// SignToken derives the short keyed digest embedded in tracking URLs.
// Deliberately deterministic: the same id and secret always produce the
// same token, so URLs in already-sent mail stay valid for the lifetime
// of the secret.
func SignToken(trackingID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(trackingID))
	return hex.EncodeToString(mac.Sum(nil))[:tokenLength]
}

// VerifyToken recomputes and compares the token for a tracking id.
func VerifyToken(trackingID, token, secret string) bool {
	if token == "" {
		return false
	}
	return hmac.Equal([]byte(token), []byte(SignToken(trackingID, secret)))
}
