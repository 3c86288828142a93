package handler

import (
	"net/http"
	"time"

	"github.com/gestorpj/fiscal-engine-go/internal/domain"
	"github.com/gestorpj/fiscal-engine-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// GET /v1/periods/{month}
// ============================================================

func getPeriodHandler(svc *service.PeriodService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/periods/{month}")
		defer span.End()

		month, err := time.Parse("2006-01", chi.URLParam(r, "month"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
			return
		}

		bucket, err := svc.GetOrCreatePeriod(ctx, CompanyIDFromContext(ctx), month)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, bucket)
	}
}

// ============================================================
// GET /v1/periods/revenue/rolling
// ============================================================

func rollingRevenueHandler(svc *service.PeriodService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/periods/revenue/rolling")
		defer span.End()

		companyID := CompanyIDFromContext(ctx)
		end := time.Now()
		if v, ok, err := parseDateParam(r, "end"); err != nil {
			handleServiceError(w, err, logger)
			return
		} else if ok {
			end = v
		}

		revenue, err := svc.RollingRevenue(ctx, companyID, end)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"company_id":    companyID,
			"end_month":     domain.MonthOf(end).Format(domain.DateOnly),
			"months":        12,
			"gross_revenue": revenue,
		})
	}
}

// ============================================================
// GET /v1/periods/totals?start=YYYY-MM-DD&end=YYYY-MM-DD
// ============================================================

func rangeTotalsHandler(svc *service.PeriodService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/periods/totals")
		defer span.End()

		start, ok, err := parseDateParam(r, "start")
		if err != nil || !ok {
			writeError(w, http.StatusBadRequest, "start is required (YYYY-MM-DD)")
			return
		}
		end, ok, err := parseDateParam(r, "end")
		if err != nil || !ok {
			writeError(w, http.StatusBadRequest, "end is required (YYYY-MM-DD)")
			return
		}

		totals, err := svc.RangeTotals(ctx, CompanyIDFromContext(ctx), start, end)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, totals)
	}
}
