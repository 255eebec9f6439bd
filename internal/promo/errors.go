package promo

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors returned by the engine. Callers match them with
// errors.Is; the HTTP layer maps each to a stable app code.
var (
	// ErrInvalidFormat indicates a malformed code or PIN. Recoverable,
	// the user corrects their input.
	ErrInvalidFormat = errors.New("promo: invalid format")

	// ErrNotFound indicates the code does not exist in the store.
	ErrNotFound = errors.New("promo: code not found")

	// ErrAlreadyRedeemed indicates the code exists but was already
	// consumed by this installation. Terminal for that code.
	ErrAlreadyRedeemed = errors.New("promo: code already redeemed")

	// ErrPINMismatch indicates the supplied admin PIN did not match.
	ErrPINMismatch = errors.New("promo: pin rejected")

	// ErrUnauthorized indicates an admin operation was attempted without
	// a valid session.
	ErrUnauthorized = errors.New("promo: admin session required")

	// ErrGenerationExhausted indicates code generation hit the bounded
	// collision-retry limit. Astronomically unlikely, handled anyway.
	ErrGenerationExhausted = errors.New("promo: code generation retries exhausted")

	// ErrIntegrityViolation indicates the persisted entitlement failed
	// its integrity stamp. The grant is treated as absent; redemption
	// records are untouched.
	ErrIntegrityViolation = errors.New("promo: entitlement integrity check failed")

	// ErrStorageUnavailable indicates the key-value backend failed a
	// read or write. Retryable; no partial state is committed.
	ErrStorageUnavailable = errors.New("promo: storage unavailable")
)

// LockoutError reports that an operation namespace is locked out after
// too many recent failures.
type LockoutError struct {
	Namespace string
	Remaining time.Duration
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("promo: %s locked out for %s", e.Namespace, e.Remaining.Round(time.Second))
}

// RemainingSeconds returns the remaining lockout rounded up to whole
// seconds, the unit the UI countdown renders.
func (e *LockoutError) RemainingSeconds() int {
	secs := int((e.Remaining + time.Second - 1) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, err)
}
