package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gestorpj/fiscal-engine-go/internal/domain"
	"github.com/gestorpj/fiscal-engine-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// POST /v1/tax/compare
// ============================================================

func taxCompareHandler(svc *service.TaxService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/tax/compare")
		defer span.End()

		var in service.CompareInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		span.SetAttributes(attribute.String("current_regime", string(in.CurrentRegime)))

		snap, err := svc.CompareRegimes(ctx, in)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// ============================================================
// GET /v1/tax/outlook?activity=services&current_regime=Simples%20Nacional
// ============================================================

func taxOutlookHandler(svc *service.TaxService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/tax/outlook")
		defer span.End()

		activity := domain.Activity(r.URL.Query().Get("activity"))
		if activity == "" {
			activity = domain.ActivityServices
		}
		regime := domain.TaxRegime(r.URL.Query().Get("current_regime"))
		if regime == "" {
			regime = domain.RegimeSimples
		}

		snap, err := svc.RegimeOutlook(ctx, CompanyIDFromContext(ctx), activity, regime)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}
