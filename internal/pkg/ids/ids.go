// Package ids generates the click and session identifiers. Both carry 64
// bits from crypto/rand; click ids are prefixed with a base36 millisecond
// timestamp so they sort coarsely by time.
package ids

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// NewClickID returns click_<base36 unix millis>_<16 hex>.
func NewClickID(now time.Time) string {
	return "click_" + strconv.FormatInt(now.UnixMilli(), 36) + "_" + randomHex(8)
}

// NewSessionID returns session_<user hash>_<16 hex>. The user hash is stable
// for a user; the random tail makes consecutive sessions unpredictable.
func NewSessionID(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return "session_" + hex.EncodeToString(sum[:6]) + "_" + randomHex(8)
}

func randomHex(n int) string {
	b := make([]byte, n)
	// crypto/rand.Read never returns an error on supported platforms.
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
