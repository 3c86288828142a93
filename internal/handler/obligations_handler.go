package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gestorpj/fiscal-engine-go/internal/domain"
	"github.com/gestorpj/fiscal-engine-go/internal/port"
	"github.com/gestorpj/fiscal-engine-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// kindParam parses the {kind} URL segment.
func kindParam(r *http.Request) domain.ObligationKind {
	return domain.ObligationKind(chi.URLParam(r, "kind"))
}

// ============================================================
// GET /v1/obligations/{kind}
// ============================================================

func listObligationsHandler(svc *service.ObligationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/obligations/{kind}")
		defer span.End()

		companyID := CompanyIDFromContext(ctx)
		kind := kindParam(r)
		span.SetAttributes(
			attribute.String("company.id", companyID),
			attribute.String("obligation.kind", string(kind)),
		)

		q := port.ObligationQuery{
			CompanyID:      companyID,
			Kind:           kind,
			IncludeSettled: r.URL.Query().Get("include_settled") == "true",
			Limit:          parseLimit(r, 0),
		}
		if start, ok, err := parseDateParam(r, "start"); err != nil {
			handleServiceError(w, err, logger)
			return
		} else if ok {
			q.Start = &start
		}
		if end, ok, err := parseDateParam(r, "end"); err != nil {
			handleServiceError(w, err, logger)
			return
		} else if ok {
			q.End = &end
		}

		obs, err := svc.ListObligations(ctx, q)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"obligations": obs})
	}
}

// ============================================================
// POST /v1/obligations/{kind}
// ============================================================

type createObligationRequest struct {
	Description      string  `json:"description"`
	CounterpartyName string  `json:"counterparty_name"`
	Amount           float64 `json:"amount"`
	DueDate          string  `json:"due_date"`
	PaymentDate      string  `json:"payment_date,omitempty"`
}

func createObligationHandler(svc *service.ObligationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/obligations/{kind}")
		defer span.End()

		var req createObligationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		due, err := time.Parse(domain.DateOnly, req.DueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "due_date must be YYYY-MM-DD")
			return
		}

		var paid *time.Time
		if req.PaymentDate != "" {
			p, err := time.Parse(domain.DateOnly, req.PaymentDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, "payment_date must be YYYY-MM-DD")
				return
			}
			paid = &p
		}

		o := &domain.Obligation{
			CompanyID:        CompanyIDFromContext(ctx),
			Kind:             kindParam(r),
			Description:      req.Description,
			CounterpartyName: req.CounterpartyName,
			Amount:           req.Amount,
			DueDate:          due,
			PaymentDate:      paid,
		}

		created, err := svc.CreateObligation(ctx, o)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

// ============================================================
// GET /v1/obligations/{kind}/{obligationId}
// ============================================================

func getObligationHandler(svc *service.ObligationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/obligations/{kind}/{obligationId}")
		defer span.End()

		o, err := svc.GetObligation(ctx, CompanyIDFromContext(ctx), kindParam(r), chi.URLParam(r, "obligationId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, o)
	}
}

// ============================================================
// POST /v1/obligations/{kind}/{obligationId}/settle
// ============================================================

func settleObligationHandler(svc *service.ObligationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/obligations/{kind}/{obligationId}/settle")
		defer span.End()

		var req struct {
			PaymentDate string `json:"payment_date"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		// Omitted payment date means settled today.
		paid := time.Now().UTC()
		if req.PaymentDate != "" {
			var err error
			paid, err = time.Parse(domain.DateOnly, req.PaymentDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, "payment_date must be YYYY-MM-DD")
				return
			}
		}

		o, err := svc.SettleObligation(ctx, CompanyIDFromContext(ctx), kindParam(r), chi.URLParam(r, "obligationId"), paid)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, o)
	}
}

// ============================================================
// GET /v1/obligations/{kind}/window
// ============================================================

func upcomingWindowHandler(svc *service.ObligationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/obligations/{kind}/window")
		defer span.End()

		obs, err := svc.UpcomingWindow(ctx, CompanyIDFromContext(ctx), kindParam(r), parseLimit(r, 10))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"obligations": obs})
	}
}

// ============================================================
// GET /v1/obligations/{kind}/periods/{month}
// ============================================================

func obligationPeriodViewHandler(svc *service.ObligationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/obligations/{kind}/periods/{month}")
		defer span.End()

		month, err := time.Parse("2006-01", chi.URLParam(r, "month"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
			return
		}

		obs, summary, err := svc.PeriodView(ctx, CompanyIDFromContext(ctx), kindParam(r), month)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"month":       month.Format("2006-01"),
			"summary":     summary,
			"obligations": obs,
		})
	}
}

// ============================================================
// DELETE /v1/obligations/{kind}/{obligationId}
// ============================================================

func deleteObligationHandler(svc *service.ObligationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/obligations/{kind}/{obligationId}")
		defer span.End()

		err := svc.DeleteObligation(ctx, CompanyIDFromContext(ctx), kindParam(r), chi.URLParam(r, "obligationId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ============================================================
// POST /v1/obligations/recompute (privileged)
// ============================================================

// recomputeStatesHandler handles both forms: the company-wide bulk recompute
// and, with ?kind=&id=, a single targeted rewrite.
func recomputeStatesHandler(svc *service.ObligationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/obligations/recompute")
		defer span.End()

		companyID := CompanyIDFromContext(ctx)

		if id := r.URL.Query().Get("id"); id != "" {
			kind := domain.ObligationKind(r.URL.Query().Get("kind"))
			if err := svc.RecomputeState(ctx, companyID, kind, id); err != nil {
				handleServiceError(w, err, logger)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"company_id": companyID,
				"recomputed": 1,
			})
			return
		}

		written, err := svc.RecomputeStates(ctx, companyID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"company_id": companyID,
			"recomputed": written,
		})
	}
}
