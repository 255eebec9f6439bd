package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "promogate/internal/errors"
	"promogate/internal/promo"
	"promogate/internal/services"
)

// mockPromoService is a hand-rolled PromoService double the handler
// tests drive directly.
type mockPromoService struct {
	redeemGrant promo.EntitlementGrant
	redeemErr   error

	grantStatus services.GrantStatusResponse

	authErr       error
	sessionStatus services.SessionStatusResponse

	generated   promo.PromoCode
	generateErr error

	codes    []promo.PromoCode
	listErr  error
	resetErr error

	lockoutSeconds int
	lockoutErr     error
}

func (m *mockPromoService) Redeem(ctx context.Context, rawCode string) (promo.EntitlementGrant, error) {
	return m.redeemGrant, m.redeemErr
}

func (m *mockPromoService) CurrentGrant(ctx context.Context) services.GrantStatusResponse {
	return m.grantStatus
}

func (m *mockPromoService) AuthenticateAdmin(ctx context.Context, pin string) error {
	return m.authErr
}

func (m *mockPromoService) EndAdminSession(ctx context.Context) error { return nil }

func (m *mockPromoService) AdminSessionStatus(ctx context.Context) services.SessionStatusResponse {
	return m.sessionStatus
}

func (m *mockPromoService) GenerateCode(ctx context.Context, codeType promo.CodeType) (promo.PromoCode, error) {
	return m.generated, m.generateErr
}

func (m *mockPromoService) ListCodes(ctx context.Context) ([]promo.PromoCode, error) {
	return m.codes, m.listErr
}

func (m *mockPromoService) RemainingLockoutSeconds(ctx context.Context, namespace string) (int, error) {
	return m.lockoutSeconds, m.lockoutErr
}

func (m *mockPromoService) ResetForFreshInstall(ctx context.Context) error { return m.resetErr }

func (m *mockPromoService) InstallID() string { return "test-install" }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func newTestRouter(svc services.PromoService) *chi.Mux {
	r := chi.NewRouter()
	r.Mount("/api", NewPromoHandler(svc, testLogger()).Routes())
	r.Mount("/api/admin", NewAdminHandler(svc, testLogger()).Routes())
	return r
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apierrors.ErrorResponse {
	t.Helper()
	var resp apierrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestRedeemEndpointSuccess(t *testing.T) {
	svc := &mockPromoService{
		redeemGrant: promo.EntitlementGrant{Type: promo.GrantLifetime},
	}
	router := newTestRouter(svc)

	rec := postJSON(t, router, "/api/redeem", RedeemRequest{Code: "LT-7K9M2XQ4"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RedeemResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, promo.GrantLifetime, resp.Grant.Type)
}

func TestRedeemEndpointMissingCode(t *testing.T) {
	router := newTestRouter(&mockPromoService{})

	rec := postJSON(t, router, "/api/redeem", RedeemRequest{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apierrors.CodeInvalidRequest, decodeError(t, rec).Error.ErrorCode)
}

func TestRedeemEndpointErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "invalid format", err: promo.ErrInvalidFormat, wantStatus: http.StatusBadRequest, wantCode: apierrors.CodeInvalidFormat},
		{name: "not found", err: promo.ErrNotFound, wantStatus: http.StatusNotFound, wantCode: apierrors.CodeNotFound},
		{name: "already redeemed", err: promo.ErrAlreadyRedeemed, wantStatus: http.StatusConflict, wantCode: apierrors.CodeAlreadyRedeemed},
		{name: "storage down", err: promo.ErrStorageUnavailable, wantStatus: http.StatusServiceUnavailable, wantCode: apierrors.CodeStorageUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&mockPromoService{redeemErr: tt.err})

			rec := postJSON(t, router, "/api/redeem", RedeemRequest{Code: "LT-7K9M2XQ4"})
			require.Equal(t, tt.wantStatus, rec.Code)

			resp := decodeError(t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantCode, resp.Error.ErrorCode)
		})
	}
}

func TestRedeemEndpointLockout(t *testing.T) {
	svc := &mockPromoService{
		redeemErr: &promo.LockoutError{Namespace: promo.NamespaceValidate, Remaining: 900 * time.Second},
	}
	router := newTestRouter(svc)

	rec := postJSON(t, router, "/api/redeem", RedeemRequest{Code: "LT-7K9M2XQ4"})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	resp := decodeError(t, rec)
	assert.Equal(t, apierrors.CodeLockedOut, resp.Error.ErrorCode)

	details, ok := resp.Error.Details.(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 900, details["remaining_seconds"])
}

func TestGrantEndpoint(t *testing.T) {
	svc := &mockPromoService{
		grantStatus: services.GrantStatusResponse{
			Grant:  promo.EntitlementGrant{Type: promo.GrantLifetime},
			Active: true,
		},
	}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/grant", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp services.GrantStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Active)
	assert.Equal(t, promo.GrantLifetime, resp.Grant.Type)
}

func TestLockoutEndpoint(t *testing.T) {
	router := newTestRouter(&mockPromoService{lockoutSeconds: 42})

	req := httptest.NewRequest(http.MethodGet, "/api/lockout/validate", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.EqualValues(t, 42, resp["remaining_seconds"])
	assert.Equal(t, true, resp["locked"])
	assert.Equal(t, "validate", resp["namespace"])
}
