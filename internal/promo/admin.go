package promo

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"promogate/internal/store"
)

// adminPINLength is the fixed digit length of the admin PIN.
const adminPINLength = 6

// DefaultAdminSessionTTL is the hard session cutoff after a successful
// PIN entry. Sessions are never extended by activity.
const DefaultAdminSessionTTL = 10 * time.Minute

// AdminConfig configures the admin authentication gate.
type AdminConfig struct {
	PIN        string
	SessionTTL time.Duration
}

// AdminAuthGate protects the administrative code-generation surface.
// Three states: logged out (no persisted session), authenticated (a
// persisted session expiry in the future), and back to logged out once
// the expiry passes or EndSession runs. The session expiry is persisted
// so a relaunch neither extends nor forgets it.
type AdminAuthGate struct {
	kv       store.Store
	clock    Clock
	throttle *AttemptThrottle
	cfg      AdminConfig
}

// NewAdminAuthGate validates the configured PIN and builds the gate.
func NewAdminAuthGate(kv store.Store, clock Clock, throttle *AttemptThrottle, cfg AdminConfig) (*AdminAuthGate, error) {
	if err := validatePINFormat(cfg.PIN); err != nil {
		return nil, fmt.Errorf("configured admin pin: %w", err)
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultAdminSessionTTL
	}
	return &AdminAuthGate{kv: kv, clock: clock, throttle: throttle, cfg: cfg}, nil
}

// Authenticate checks the supplied PIN and, on success, starts a session
// with a hard expiry. A malformed PIN counts as a failed attempt. When a
// failure trips the lockout threshold the returned error is the lockout,
// not a plain mismatch, so the caller does not imply attempts remain.
func (g *AdminAuthGate) Authenticate(pin string) error {
	remaining, err := g.throttle.RemainingLockout(NamespaceAdmin)
	if err != nil {
		return err
	}
	if remaining > 0 {
		return &LockoutError{Namespace: NamespaceAdmin, Remaining: remaining}
	}

	if err := validatePINFormat(pin); err != nil {
		if lockErr := g.recordFailure(); lockErr != nil {
			return lockErr
		}
		return err
	}

	if !constantTimePINMatch(pin, g.cfg.PIN) {
		if lockErr := g.recordFailure(); lockErr != nil {
			return lockErr
		}
		return ErrPINMismatch
	}

	if err := g.throttle.RecordSuccess(NamespaceAdmin); err != nil {
		return err
	}
	return g.startSession()
}

func (g *AdminAuthGate) recordFailure() error {
	lockout, err := g.throttle.RecordFailure(NamespaceAdmin)
	if err != nil {
		return err
	}
	if lockout > 0 {
		return &LockoutError{Namespace: NamespaceAdmin, Remaining: lockout}
	}
	return nil
}

func (g *AdminAuthGate) startSession() error {
	expires := g.clock.Now().Add(g.cfg.SessionTTL)
	if err := g.kv.Set(keyAdminSession, []byte(expires.UTC().Format(time.RFC3339Nano))); err != nil {
		return storageErr("persist admin session", err)
	}
	return nil
}

// IsAuthenticated re-checks the session expiry lazily. An expired
// session is cleared on the spot.
func (g *AdminAuthGate) IsAuthenticated() bool {
	expires, ok := g.sessionExpiry()
	if !ok {
		return false
	}
	if g.clock.Now().Before(expires) {
		return true
	}
	// Session expired; drop the stale record.
	_ = g.kv.Delete(keyAdminSession)
	return false
}

// RequireSession returns ErrUnauthorized unless a session is live. Every
// admin-API call goes through this; it never extends the session.
func (g *AdminAuthGate) RequireSession() error {
	if !g.IsAuthenticated() {
		return ErrUnauthorized
	}
	return nil
}

// EndSession logs the admin out immediately.
func (g *AdminAuthGate) EndSession() error {
	if err := g.kv.Delete(keyAdminSession); err != nil {
		return storageErr("clear admin session", err)
	}
	return nil
}

// SessionExpiresAt reports the hard cutoff of the current session.
func (g *AdminAuthGate) SessionExpiresAt() (time.Time, bool) {
	expires, ok := g.sessionExpiry()
	if !ok || !g.clock.Now().Before(expires) {
		return time.Time{}, false
	}
	return expires, true
}

func (g *AdminAuthGate) sessionExpiry() (time.Time, bool) {
	raw, err := g.kv.Get(keyAdminSession)
	if errors.Is(err, store.ErrKeyNotFound) {
		return time.Time{}, false
	}
	if err != nil {
		return time.Time{}, false
	}
	expires, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return time.Time{}, false
	}
	return expires, true
}

func validatePINFormat(pin string) error {
	if len(pin) != adminPINLength {
		return fmt.Errorf("%w: pin must be %d digits", ErrInvalidFormat, adminPINLength)
	}
	for _, ch := range pin {
		if ch < '0' || ch > '9' {
			return fmt.Errorf("%w: pin must be numeric", ErrInvalidFormat)
		}
	}
	return nil
}

// constantTimePINMatch compares the supplied PIN against the configured
// one without early exit. On a length mismatch it still burns a full
// comparison against a dummy buffer so the rejection path takes
// comparable time.
func constantTimePINMatch(supplied, configured string) bool {
	if len(supplied) != len(configured) {
		dummy := make([]byte, len(supplied))
		subtle.ConstantTimeCompare([]byte(supplied), dummy)
		return false
	}
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(configured)) == 1
}
