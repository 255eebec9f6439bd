// Package http contains the chi handlers exposing the licensing engine
// to the host UI over the local HTTP surface.
package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apierrors "promogate/internal/errors"
	"promogate/internal/promo"
	"promogate/internal/services"
)

// PromoHandler handles redemption and entitlement requests.
type PromoHandler struct {
	service services.PromoService
	logger  *slog.Logger
}

// NewPromoHandler creates a new promo handler.
func NewPromoHandler(service services.PromoService, logger *slog.Logger) *PromoHandler {
	return &PromoHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "promo")),
	}
}

// RedeemRequest is the redemption request payload. The engine performs
// all normalization; the raw user input goes through untouched.
type RedeemRequest struct {
	Code string `json:"code"`
}

// Bind implements the render.Binder interface.
func (r *RedeemRequest) Bind(_ *http.Request) error {
	if r.Code == "" {
		return errors.New("code is required")
	}
	return nil
}

// RedeemResponse is the successful redemption response.
type RedeemResponse struct {
	Success   bool                   `json:"success"`
	Grant     promo.EntitlementGrant `json:"grant"`
	Timestamp time.Time              `json:"timestamp"`
}

// Routes returns the router for the redemption endpoints.
func (h *PromoHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Timeout(10 * time.Second))

	r.Post("/redeem", h.Redeem)
	r.Get("/grant", h.Grant)
	r.Get("/lockout/{namespace}", h.Lockout)

	return r
}

// Redeem handles POST /api/redeem.
func (h *PromoHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("promo-handler")
	ctx, span := tracer.Start(ctx, "promo_handler.redeem",
		trace.WithAttributes(
			attribute.String("http.route", "/api/redeem"),
			attribute.String("request_id", middleware.GetReqID(ctx)),
		),
	)
	defer span.End()

	var req RedeemRequest
	if err := render.Bind(r, &req); err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.InvalidRequestWithError(err)))
		return
	}

	grant, err := h.service.Redeem(ctx, req.Code)
	if err != nil {
		span.RecordError(err)
		render.Render(w, r, apierrors.NewErrorResponse(MapEngineError(err)))
		return
	}

	span.SetAttributes(attribute.String("grant.type", string(grant.Type)))
	render.Status(r, http.StatusOK)
	render.JSON(w, r, RedeemResponse{
		Success:   true,
		Grant:     grant,
		Timestamp: time.Now(),
	})
}

// Grant handles GET /api/grant.
func (h *PromoHandler) Grant(w http.ResponseWriter, r *http.Request) {
	status := h.service.CurrentGrant(r.Context())
	render.JSON(w, r, status)
}

// Lockout handles GET /api/lockout/{namespace}.
func (h *PromoHandler) Lockout(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")
	remaining, err := h.service.RemainingLockoutSeconds(r.Context(), namespace)
	if err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.InvalidRequestWithError(err)))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"namespace":         namespace,
		"remaining_seconds": remaining,
		"locked":            remaining > 0,
	})
}

// MapEngineError converts engine sentinel errors to the API taxonomy.
// Unknown errors collapse to a generic 500; internal detail never
// reaches the client.
func MapEngineError(err error) *apierrors.APIError {
	var lockout *promo.LockoutError
	switch {
	case errors.As(err, &lockout):
		return apierrors.LockedOut(lockout.RemainingSeconds())
	case errors.Is(err, promo.ErrInvalidFormat):
		return apierrors.ErrInvalidCodeFormat
	case errors.Is(err, promo.ErrNotFound):
		return apierrors.ErrCodeNotFound
	case errors.Is(err, promo.ErrAlreadyRedeemed):
		return apierrors.ErrAlreadyRedeemed
	case errors.Is(err, promo.ErrPINMismatch):
		return apierrors.ErrAuthFailed
	case errors.Is(err, promo.ErrUnauthorized):
		return apierrors.ErrUnauthorized
	case errors.Is(err, promo.ErrGenerationExhausted):
		return apierrors.ErrGenerationExhausted
	case errors.Is(err, promo.ErrStorageUnavailable):
		return apierrors.ErrStorageUnavailable
	default:
		return apierrors.ErrInternalServer
	}
}
