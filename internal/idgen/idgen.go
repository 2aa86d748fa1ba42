// Package idgen generates branch IDs and URL-safe slugs.
package idgen

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode"
)

// base36Alphabet is the character set for base36 encoding (0-9, a-z).
const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// BranchIDLength is the number of base36 characters in a branch ID suffix.
const BranchIDLength = 6

// EncodeBase36 converts a byte slice to a base36 string of specified length.
func EncodeBase36(data []byte, length int) string {
	num := new(big.Int).SetBytes(data)

	base := big.NewInt(36)
	zero := big.NewInt(0)
	mod := new(big.Int)

	chars := make([]byte, 0, length)
	for num.Cmp(zero) > 0 {
		num.DivMod(num, base, mod)
		chars = append(chars, base36Alphabet[mod.Int64()])
	}

	// The digits come out least-significant first.
	var result strings.Builder
	for i := len(chars) - 1; i >= 0; i-- {
		result.WriteByte(chars[i])
	}

	str := result.String()
	if len(str) < length {
		str = strings.Repeat("0", length-len(str)) + str
	}
	if len(str) > length {
		str = str[len(str)-length:]
	}
	return str
}

// GenerateBranchID creates a hash-based branch ID like "br-k3x9qa".
// The nonce handles the (rare) collision case: callers retry with an
// incremented nonce until the ID is free.
func GenerateBranchID(name, ownerID string, timestamp time.Time, nonce int) string {
	content := fmt.Sprintf("%s|%s|%d|%d", name, ownerID, timestamp.UnixNano(), nonce)
	hash := sha256.Sum256([]byte(content))
	return "br-" + EncodeBase36(hash[:4], BranchIDLength)
}

// Slugify derives a URL-safe slug from a branch name and owner. The owner is
// folded into a short hash suffix so two owners can use the same name
// without colliding.
func Slugify(name, ownerID string) string {
	base := slugBase(name)
	hash := sha256.Sum256([]byte(ownerID + "/" + name))
	return base + "-" + EncodeBase36(hash[:2], 3)
}

// slugBase lowercases the name and collapses runs of non-alphanumerics into
// single hyphens.
func slugBase(name string) string {
	var b strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		slug = "branch"
	}
	if len(slug) > 60 {
		slug = strings.TrimSuffix(slug[:60], "-")
	}
	return slug
}
