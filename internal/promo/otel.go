package promo

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// engineMetrics holds the OpenTelemetry instruments the engine reports
// through. They surface on the Prometheus /metrics endpoint.
type engineMetrics struct {
	redemptions         metric.Int64Counter
	codesGenerated      metric.Int64Counter
	lockouts            metric.Int64Counter
	integrityViolations metric.Int64Counter
	adminAuth           metric.Int64Counter
}

func newEngineMetrics() (*engineMetrics, error) {
	meter := otel.Meter("promogate/promo")

	redemptions, err := meter.Int64Counter("promo_redemptions_total",
		metric.WithDescription("Redemption attempts by result"))
	if err != nil {
		return nil, fmt.Errorf("create redemptions counter: %w", err)
	}

	codesGenerated, err := meter.Int64Counter("promo_codes_generated_total",
		metric.WithDescription("Codes generated by type"))
	if err != nil {
		return nil, fmt.Errorf("create codes generated counter: %w", err)
	}

	lockouts, err := meter.Int64Counter("promo_lockouts_total",
		metric.WithDescription("Lockouts armed by namespace"))
	if err != nil {
		return nil, fmt.Errorf("create lockouts counter: %w", err)
	}

	integrityViolations, err := meter.Int64Counter("promo_integrity_violations_total",
		metric.WithDescription("Entitlement stamp verification failures"))
	if err != nil {
		return nil, fmt.Errorf("create integrity violations counter: %w", err)
	}

	adminAuth, err := meter.Int64Counter("promo_admin_auth_total",
		metric.WithDescription("Admin PIN authentication attempts by result"))
	if err != nil {
		return nil, fmt.Errorf("create admin auth counter: %w", err)
	}

	return &engineMetrics{
		redemptions:         redemptions,
		codesGenerated:      codesGenerated,
		lockouts:            lockouts,
		integrityViolations: integrityViolations,
		adminAuth:           adminAuth,
	}, nil
}

func (m *engineMetrics) recordRedemption(ctx context.Context, result string) {
	m.redemptions.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *engineMetrics) recordCodeGenerated(ctx context.Context, codeType CodeType) {
	m.codesGenerated.Add(ctx, 1, metric.WithAttributes(attribute.String("type", string(codeType))))
}

func (m *engineMetrics) recordLockout(ctx context.Context, namespace string) {
	m.lockouts.Add(ctx, 1, metric.WithAttributes(attribute.String("namespace", namespace)))
}

func (m *engineMetrics) recordIntegrityViolation(ctx context.Context) {
	m.integrityViolations.Add(ctx, 1)
}

func (m *engineMetrics) recordAdminAuth(ctx context.Context, result string) {
	m.adminAuth.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
