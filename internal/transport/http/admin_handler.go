package http

import (
	"errors"
	"fmt"
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
	"promogate/internal/exporter"
	"promogate/internal/promo"
	"promogate/internal/services"
)

// AdminHandler handles the PIN-gated admin surface: session management,
// code generation, inventory listing and export, and the fresh-install
// reset.
type AdminHandler struct {
	service services.PromoService
	logger  *slog.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(service services.PromoService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "admin")),
	}
}

// AuthenticateRequest carries the admin PIN.
type AuthenticateRequest struct {
	PIN string `json:"pin"`
}

// Bind implements the render.Binder interface.
func (r *AuthenticateRequest) Bind(_ *http.Request) error {
	if r.PIN == "" {
		return errors.New("pin is required")
	}
	return nil
}

// GenerateCodeRequest selects the code type to mint.
type GenerateCodeRequest struct {
	Type string `json:"type"`
}

// Bind implements the render.Binder interface.
func (r *GenerateCodeRequest) Bind(_ *http.Request) error {
	if r.Type == "" {
		return errors.New("type is required")
	}
	return nil
}

// Routes returns the router for the admin endpoints.
func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Timeout(30 * time.Second))

	r.Post("/authenticate", h.Authenticate)
	r.Get("/session", h.Session)
	r.Post("/logout", h.Logout)
	r.Post("/codes", h.GenerateCode)
	r.Get("/codes", h.ListCodes)
	r.Get("/codes/export", h.ExportCodes)
	r.Post("/reset", h.Reset)

	return r
}

// Authenticate handles POST /api/admin/authenticate.
func (h *AdminHandler) Authenticate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("admin-handler")
	ctx, span := tracer.Start(ctx, "admin_handler.authenticate",
		trace.WithAttributes(
			attribute.String("http.route", "/api/admin/authenticate"),
			attribute.String("request_id", middleware.GetReqID(ctx)),
		),
	)
	defer span.End()

	var req AuthenticateRequest
	if err := render.Bind(r, &req); err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.InvalidRequestWithError(err)))
		return
	}

	if err := h.service.AuthenticateAdmin(ctx, req.PIN); err != nil {
		span.RecordError(err)
		render.Render(w, r, apierrors.NewErrorResponse(MapEngineError(err)))
		return
	}

	status := h.service.AdminSessionStatus(ctx)
	render.JSON(w, r, status)
}

// Session handles GET /api/admin/session.
func (h *AdminHandler) Session(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.AdminSessionStatus(r.Context()))
}

// Logout handles POST /api/admin/logout.
func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.EndAdminSession(r.Context()); err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(MapEngineError(err)))
		return
	}
	render.JSON(w, r, map[string]bool{"success": true})
}

// GenerateCode handles POST /api/admin/codes.
func (h *AdminHandler) GenerateCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("admin-handler")
	ctx, span := tracer.Start(ctx, "admin_handler.generate_code")
	defer span.End()

	var req GenerateCodeRequest
	if err := render.Bind(r, &req); err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(apierrors.InvalidRequestWithError(err)))
		return
	}

	codeType := promo.CodeType(req.Type)
	code, err := h.service.GenerateCode(ctx, codeType)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, promo.ErrInvalidFormat) {
			render.Render(w, r, apierrors.NewErrorResponse(
				apierrors.InvalidRequestWithError(fmt.Errorf("unknown code type %q", req.Type))))
			return
		}
		render.Render(w, r, apierrors.NewErrorResponse(MapEngineError(err)))
		return
	}

	span.SetAttributes(attribute.String("code.type", string(codeType)))
	h.logger.InfoContext(ctx, "code generated",
		slog.String("request_id", middleware.GetReqID(ctx)),
		slog.String("type", string(codeType)),
	)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, code)
}

// ListCodes handles GET /api/admin/codes.
func (h *AdminHandler) ListCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := h.service.ListCodes(r.Context())
	if err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(MapEngineError(err)))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"codes": codes,
		"count": len(codes),
	})
}

// ExportCodes handles GET /api/admin/codes/export. Streams the full
// inventory as an Excel workbook.
func (h *AdminHandler) ExportCodes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	codes, err := h.service.ListCodes(ctx)
	if err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(MapEngineError(err)))
		return
	}

	filename := fmt.Sprintf("promo_codes_%s.xlsx", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	if err := exporter.WriteCodesXLSX(w, codes); err != nil {
		// Headers are already out; all we can do is log.
		h.logger.ErrorContext(ctx, "failed to stream code export",
			slog.String("request_id", middleware.GetReqID(ctx)),
			slog.String("error", err.Error()),
		)
	}
}

// Reset handles POST /api/admin/reset. Clears throttle state and the
// admin session so a fresh install starts clean; the code inventory and
// redemption history are untouched.
func (h *AdminHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ResetForFreshInstall(r.Context()); err != nil {
		render.Render(w, r, apierrors.NewErrorResponse(MapEngineError(err)))
		return
	}
	render.JSON(w, r, map[string]bool{"success": true})
}
