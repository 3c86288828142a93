package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gestorpj/fiscal-engine-go/internal/domain"
	"github.com/gestorpj/fiscal-engine-go/internal/handler"
	"github.com/gestorpj/fiscal-engine-go/internal/infra/observability"
	"github.com/gestorpj/fiscal-engine-go/internal/service"

	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) (http.Handler, *service.AuthService) {
	t.Helper()
	authSvc := service.NewAuthService("test-secret", time.Hour)
	taxSvc := service.NewTaxService(nil, observability.NewMetrics(), zap.NewNop())
	router := handler.NewRouter(nil, nil, taxSvc, authSvc, observability.NewMetrics(), zap.NewNop())
	return router, authSvc
}

func TestHealthz(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestV1_NoToken(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/obligations/payable", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestV1_MalformedAuthHeader(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/obligations/payable", nil)
	req.Header.Set("Authorization", "token abc123")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestV1_InvalidToken(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/tax/outlook", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestTaxCompare_WithToken(t *testing.T) {
	router, authSvc := newTestRouter(t)

	token, err := authSvc.SignAccessToken("comp-1", false)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	body, _ := json.Marshal(service.CompareInput{
		Revenue12M:    100_000,
		Activity:      domain.ActivityServices,
		CurrentRegime: domain.RegimeSimples,
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/tax/compare", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var snap domain.RegimeSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if snap.BestRegime != domain.RegimeSimples {
		t.Errorf("expected Simples best, got %s", snap.BestRegime)
	}
}

func TestTaxCompare_ValidationError(t *testing.T) {
	router, authSvc := newTestRouter(t)

	token, _ := authSvc.SignAccessToken("comp-1", false)

	body := []byte(`{"revenue_12m": -5, "activity": "services", "current_regime": "Simples Nacional"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/tax/compare", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestRecompute_RequiresPrivilegedClaim(t *testing.T) {
	router, authSvc := newTestRouter(t)

	token, _ := authSvc.SignAccessToken("comp-1", false)

	req := httptest.NewRequest(http.MethodPost, "/v1/obligations/recompute", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestExpiredToken(t *testing.T) {
	expired := service.NewAuthService("test-secret", -time.Hour)
	taxSvc := service.NewTaxService(nil, observability.NewMetrics(), zap.NewNop())
	router := handler.NewRouter(nil, nil, taxSvc, service.NewAuthService("test-secret", time.Hour), observability.NewMetrics(), zap.NewNop())

	token, err := expired.SignAccessToken("comp-1", false)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/tax/outlook", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for expired token, got %d", rec.Code)
	}
}

func TestEngineMetricsSnapshot(t *testing.T) {
	router, authSvc := newTestRouter(t)

	token, _ := authSvc.SignAccessToken("comp-1", false)

	req := httptest.NewRequest(http.MethodGet, "/v1/metrics/engine", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
