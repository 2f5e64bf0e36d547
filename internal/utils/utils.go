package utils

import (
	"math/rand/v2"
	"strings"
)

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

const (
	CodeLength   = 6
	codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// GenerateCode returns a short upper-case base36 join code such as "K3Q9ZD".
// Uniqueness is enforced by the store; callers retry on conflict.
func GenerateCode() string {
	var b strings.Builder
	b.Grow(CodeLength)
	for range CodeLength {
		b.WriteByte(codeAlphabet[rand.IntN(len(codeAlphabet))])
	}
	return b.String()
}

// NormalizeCode upper-cases and trims a code typed by a person.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
