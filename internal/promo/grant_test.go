package promo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGrantActiveAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name  string
		grant EntitlementGrant
		want  bool
	}{
		{name: "none", grant: NoGrant(), want: false},
		{name: "lifetime", grant: EntitlementGrant{Type: GrantLifetime}, want: true},
		{name: "monthly active", grant: EntitlementGrant{Type: GrantMonthly, ExpiresAt: &future}, want: true},
		{name: "monthly expired", grant: EntitlementGrant{Type: GrantMonthly, ExpiresAt: &past}, want: false},
		{name: "monthly expiring exactly now", grant: EntitlementGrant{Type: GrantMonthly, ExpiresAt: &now}, want: false},
		{name: "monthly without expiry", grant: EntitlementGrant{Type: GrantMonthly}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.grant.ActiveAt(now))
		})
	}
}

func TestEffectiveAtCollapsesExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)

	expired := EntitlementGrant{Type: GrantMonthly, ExpiresAt: &past}
	assert.Equal(t, NoGrant(), expired.EffectiveAt(now))

	lifetime := EntitlementGrant{Type: GrantLifetime}
	assert.Equal(t, lifetime, lifetime.EffectiveAt(now))
}

func TestMergeGrants(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	soon := now.Add(24 * time.Hour)
	later := now.Add(48 * time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name string
		a, b EntitlementGrant
		want EntitlementGrant
	}{
		{
			name: "none and none",
			a:    NoGrant(), b: NoGrant(),
			want: NoGrant(),
		},
		{
			name: "lifetime beats monthly",
			a:    EntitlementGrant{Type: GrantLifetime},
			b:    EntitlementGrant{Type: GrantMonthly, ExpiresAt: &later},
			want: EntitlementGrant{Type: GrantLifetime},
		},
		{
			name: "later monthly expiry wins",
			a:    EntitlementGrant{Type: GrantMonthly, ExpiresAt: &soon},
			b:    EntitlementGrant{Type: GrantMonthly, ExpiresAt: &later},
			want: EntitlementGrant{Type: GrantMonthly, ExpiresAt: &later},
		},
		{
			name: "expired monthly loses to active monthly",
			a:    EntitlementGrant{Type: GrantMonthly, ExpiresAt: &past},
			b:    EntitlementGrant{Type: GrantMonthly, ExpiresAt: &soon},
			want: EntitlementGrant{Type: GrantMonthly, ExpiresAt: &soon},
		},
		{
			name: "expired monthly and none",
			a:    EntitlementGrant{Type: GrantMonthly, ExpiresAt: &past},
			b:    NoGrant(),
			want: NoGrant(),
		},
		{
			name: "order does not matter",
			a:    EntitlementGrant{Type: GrantMonthly, ExpiresAt: &soon},
			b:    EntitlementGrant{Type: GrantLifetime},
			want: EntitlementGrant{Type: GrantLifetime},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MergeGrants(tt.a, tt.b, now))
		})
	}
}

func TestMonthlyGrantDuration(t *testing.T) {
	assert.Equal(t, 30*24*time.Hour, MonthlyGrantDuration)
}
