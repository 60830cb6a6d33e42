package account

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const digits = "0123456789"

// Hash returns the hex SHA-256 of s.
func Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// CombinedHash is the stored credential for an account.
func CombinedHash(dob, accountNumber string) string {
	return Hash(dob + accountNumber)
}

// NewAccountNumber returns 16 random digits grouped as
// DD-DD-DD-DDDD-DD-DDDD.
func NewAccountNumber() (string, error) {
	raw, err := gonanoid.Generate(digits, 16)
	if err != nil {
		return "", err
	}
	groups := []int{2, 2, 2, 4, 2, 4}
	var b strings.Builder
	pos := 0
	for i, n := range groups {
		if i > 0 {
			b.WriteByte('-')
		}
		b.WriteString(raw[pos : pos+n])
		pos += n
	}
	return b.String(), nil
}
