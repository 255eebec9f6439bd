package promo

import (
	"fmt"
	"strings"
	"time"
)

// CodeType classifies what entitlement a promo code converts into.
type CodeType string

const (
	// CodeTypeLifetime grants a permanent entitlement.
	CodeTypeLifetime CodeType = "lifetime"
	// CodeTypeMonthly grants a 30-day entitlement from redemption time.
	CodeTypeMonthly CodeType = "monthly"
)

// Code format constants. A canonical code looks like LT-7K9M2XQ4: a
// two-letter type tag, a dash, and an eight-character body drawn from a
// restricted alphabet.
const (
	// codeAlphabet excludes the visually ambiguous characters 0/O/I/1.
	// 32 characters, so a random byte maps in without modulo bias.
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	codeBodyLength = 8

	lifetimePrefix = "LT"
	monthlyPrefix  = "MO"

	// canonicalCodeLength = prefix + dash + body.
	canonicalCodeLength = 2 + 1 + codeBodyLength
)

// PromoCode is an issued redemption code. Immutable once created.
type PromoCode struct {
	Code      string    `json:"code"`
	Type      CodeType  `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// Prefix returns the two-letter type tag for a code type.
func (t CodeType) Prefix() string {
	if t == CodeTypeLifetime {
		return lifetimePrefix
	}
	return monthlyPrefix
}

// Valid reports whether t is a known code type.
func (t CodeType) Valid() bool {
	return t == CodeTypeLifetime || t == CodeTypeMonthly
}

func typeForPrefix(prefix string) (CodeType, bool) {
	switch prefix {
	case lifetimePrefix:
		return CodeTypeLifetime, true
	case monthlyPrefix:
		return CodeTypeMonthly, true
	default:
		return "", false
	}
}

// NormalizeCode maps raw user input to canonical form: surrounding
// whitespace trimmed, internal spaces stripped, uppercased. Input typed
// without the separating dash is tolerated and re-dashed.
func NormalizeCode(raw string) string {
	clean := strings.TrimSpace(raw)
	clean = strings.ReplaceAll(clean, " ", "")
	clean = strings.ToUpper(clean)

	// LT7K9M2XQ4 -> LT-7K9M2XQ4
	if len(clean) == canonicalCodeLength-1 && !strings.Contains(clean, "-") {
		clean = clean[:2] + "-" + clean[2:]
	}
	return clean
}

// ValidateCodeFormat checks a normalized code against the expected
// shape. It says nothing about whether the code was ever issued.
func ValidateCodeFormat(code string) error {
	if len(code) != canonicalCodeLength {
		return fmt.Errorf("%w: code must be %d characters", ErrInvalidFormat, canonicalCodeLength)
	}
	if code[2] != '-' {
		return fmt.Errorf("%w: expected dash after type tag", ErrInvalidFormat)
	}
	if _, ok := typeForPrefix(code[:2]); !ok {
		return fmt.Errorf("%w: unknown type tag %q", ErrInvalidFormat, code[:2])
	}
	for _, ch := range code[3:] {
		if !strings.ContainsRune(codeAlphabet, ch) {
			return fmt.Errorf("%w: character %q not in code alphabet", ErrInvalidFormat, ch)
		}
	}
	return nil
}

// CodeTypeOf extracts the type from a canonical code. The code must have
// passed ValidateCodeFormat.
func CodeTypeOf(code string) (CodeType, bool) {
	if len(code) < 2 {
		return "", false
	}
	return typeForPrefix(code[:2])
}

// maskCode hides the body of a code for log output.
func maskCode(code string) string {
	if len(code) <= 5 {
		return "****"
	}
	return code[:5] + "****"
}
