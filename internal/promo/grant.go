package promo

import "time"

// GrantType is the derived access level.
type GrantType string

const (
	GrantNone     GrantType = "none"
	GrantMonthly  GrantType = "monthly"
	GrantLifetime GrantType = "lifetime"
)

// MonthlyGrantDuration is how long a Monthly redemption stays active.
const MonthlyGrantDuration = 30 * 24 * time.Hour

// EntitlementGrant is the derived entitlement state. It is a pure
// function of the redemption records plus the purchase-derived grant and
// is persisted only as a cache alongside its integrity stamp.
type EntitlementGrant struct {
	Type      GrantType  `json:"type"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// NoGrant is the zero entitlement.
func NoGrant() EntitlementGrant {
	return EntitlementGrant{Type: GrantNone}
}

// ActiveAt reports whether the grant confers access at the given time.
// An ExpiresAt in the past means no access regardless of Type; expiry is
// evaluated at read time, never assumed from a stored flag.
func (g EntitlementGrant) ActiveAt(now time.Time) bool {
	switch g.Type {
	case GrantLifetime:
		return true
	case GrantMonthly:
		return g.ExpiresAt != nil && now.Before(*g.ExpiresAt)
	default:
		return false
	}
}

// EffectiveAt collapses an expired grant to None.
func (g EntitlementGrant) EffectiveAt(now time.Time) EntitlementGrant {
	if !g.ActiveAt(now) {
		return NoGrant()
	}
	return g
}

// MergeGrants combines two independently sourced grants by taking the
// most permissive one that is active at the given time. Lifetime beats
// Monthly; between two active Monthly grants the later expiry wins.
func MergeGrants(a, b EntitlementGrant, now time.Time) EntitlementGrant {
	a = a.EffectiveAt(now)
	b = b.EffectiveAt(now)

	if a.Type == GrantLifetime || b.Type == GrantLifetime {
		return EntitlementGrant{Type: GrantLifetime}
	}
	if a.Type == GrantMonthly && b.Type == GrantMonthly {
		if a.ExpiresAt.After(*b.ExpiresAt) {
			return a
		}
		return b
	}
	if a.Type == GrantMonthly {
		return a
	}
	if b.Type == GrantMonthly {
		return b
	}
	return NoGrant()
}

// PurchaseProvider supplies the purchase-derived entitlement signal from
// the commerce integration. The engine never writes purchase state; it
// only merges it into the grant it computes from redemption records.
type PurchaseProvider interface {
	PurchaseGrant() EntitlementGrant
}

// NoPurchase is a PurchaseProvider that reports no purchase entitlement.
type NoPurchase struct{}

func (NoPurchase) PurchaseGrant() EntitlementGrant { return NoGrant() }
