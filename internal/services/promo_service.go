// Package services provides the business-logic layer between the
// licensing engine and the HTTP transport.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"promogate/internal/infrastructure"
	"promogate/internal/promo"
)

// PromoService is the interface the transport layer consumes. It mirrors
// the engine surface one-to-one and exists so handlers can be tested
// against a mock.
type PromoService interface {
	Redeem(ctx context.Context, rawCode string) (promo.EntitlementGrant, error)
	CurrentGrant(ctx context.Context) GrantStatusResponse

	AuthenticateAdmin(ctx context.Context, pin string) error
	EndAdminSession(ctx context.Context) error
	AdminSessionStatus(ctx context.Context) SessionStatusResponse

	GenerateCode(ctx context.Context, codeType promo.CodeType) (promo.PromoCode, error)
	ListCodes(ctx context.Context) ([]promo.PromoCode, error)

	RemainingLockoutSeconds(ctx context.Context, namespace string) (int, error)
	ResetForFreshInstall(ctx context.Context) error
	InstallID() string
}

// GrantStatusResponse is the entitlement state as presented to the UI.
type GrantStatusResponse struct {
	Grant     promo.EntitlementGrant `json:"grant"`
	Active    bool                   `json:"active"`
	TraceID   string                 `json:"trace_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// SessionStatusResponse reports the admin session state.
type SessionStatusResponse struct {
	Authenticated bool       `json:"authenticated"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// promoService is the production implementation backed by the engine.
type promoService struct {
	engine *promo.Engine
	clock  promo.Clock
	logger *slog.Logger
}

// NewPromoService wires the service to the engine.
func NewPromoService(engine *promo.Engine, clock promo.Clock, logger *slog.Logger) PromoService {
	return &promoService{
		engine: engine,
		clock:  clock,
		logger: logger.With(slog.String("service", "promo")),
	}
}

func (s *promoService) Redeem(ctx context.Context, rawCode string) (promo.EntitlementGrant, error) {
	reqID := middleware.GetReqID(ctx)
	grant, err := s.engine.Redeem(ctx, rawCode)
	if err != nil {
		s.logger.WarnContext(ctx, "redemption rejected",
			slog.String("request_id", reqID),
			slog.String("error", err.Error()),
		)
		return promo.NoGrant(), err
	}
	s.logger.InfoContext(ctx, "redemption succeeded",
		slog.String("request_id", reqID),
		slog.String("grant_type", string(grant.Type)),
	)
	return grant, nil
}

func (s *promoService) CurrentGrant(ctx context.Context) GrantStatusResponse {
	grant := s.engine.CurrentGrant(ctx)
	return GrantStatusResponse{
		Grant:     grant,
		Active:    grant.ActiveAt(s.clock.Now()),
		TraceID:   infrastructure.GetTraceID(ctx),
		Timestamp: s.clock.Now(),
	}
}

func (s *promoService) AuthenticateAdmin(ctx context.Context, pin string) error {
	return s.engine.AuthenticateAdmin(ctx, pin)
}

func (s *promoService) EndAdminSession(ctx context.Context) error {
	return s.engine.EndAdminSession(ctx)
}

func (s *promoService) AdminSessionStatus(ctx context.Context) SessionStatusResponse {
	expiry, ok := s.engine.AdminSessionExpiry()
	if !ok {
		return SessionStatusResponse{Authenticated: false}
	}
	return SessionStatusResponse{Authenticated: true, ExpiresAt: &expiry}
}

func (s *promoService) GenerateCode(ctx context.Context, codeType promo.CodeType) (promo.PromoCode, error) {
	return s.engine.GenerateCode(ctx, codeType)
}

func (s *promoService) ListCodes(ctx context.Context) ([]promo.PromoCode, error) {
	return s.engine.ListCodes(ctx)
}

func (s *promoService) RemainingLockoutSeconds(ctx context.Context, namespace string) (int, error) {
	return s.engine.RemainingLockoutSeconds(namespace)
}

func (s *promoService) ResetForFreshInstall(ctx context.Context) error {
	return s.engine.ResetForFreshInstall(ctx)
}

func (s *promoService) InstallID() string {
	return s.engine.InstallID()
}
