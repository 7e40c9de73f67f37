package store

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Fingerprint computes the content fingerprint of extracted homepage text:
// NFKC-normalized, lowercased, whitespace-collapsed SHA-256. Two fetches of
// the same page that differ only in encoding quirks or whitespace hash
// identically, so cosmetic churn never triggers reclassification.
func Fingerprint(text string) string {
	t := norm.NFKC.String(text)
	t = strings.ToLower(t)
	t = strings.Join(strings.Fields(t), " ")
	sum := sha256.Sum256([]byte(t))
	return hex.EncodeToString(sum[:])
}
