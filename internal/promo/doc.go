// Package promo implements the offline promo-code licensing engine.
//
// The engine generates human-enterable redemption codes, validates and
// redeems them against a locally persisted store, converts a successful
// redemption into a time-bounded or permanent entitlement, and gates the
// administrative code-generation surface behind a PIN.
//
// Architecture:
//
//	Engine            - facade and single-worker mutation queue
//	CodeStore         - durable code set + per-install redemption records
//	CodeGenerator     - collision-free random code generation
//	AttemptThrottle   - persisted rate limiter / lockout tracker
//	IntegrityGuard    - keyed hash over the persisted entitlement
//	AdminAuthGate     - PIN auth with hard-cutoff sessions
//
// Everything that mutates CodeStore, throttle state, or the admin session
// is funnelled through the Engine's worker goroutine, so at most one
// mutation is in flight at any time. Read paths (CurrentGrant,
// IsAdminAuthenticated, RemainingLockoutSeconds) observe the store
// directly; staleness there is acceptable because the authoritative
// decision is always re-checked inside the serialized path.
//
// The engine is fully offline: it performs no network I/O and trusts only
// local state. Two consequences are deliberate and documented: the same
// code can be redeemed on two different installations (redemption records
// are scoped per install), and a user who rolls the device clock backward
// can delay, but not escape, a Monthly expiry.
package promo
