// Package service provides the business logic layer (use cases).
// ObligationService normalizes stored records into the canonical
// obligation shape and keeps their derived state pair fresh.
package service

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"time"

	"github.com/gestorpj/fiscal-engine-go/internal/domain"
	"github.com/gestorpj/fiscal-engine-go/internal/infra/observability"
	"github.com/gestorpj/fiscal-engine-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var obligationTracer = otel.Tracer("service/obligations")

// ObligationService reads obligations through the two-schema resolver,
// derives their state on every read and writes settlements back.
type ObligationService struct {
	store   port.ObligationStore
	legacy  port.LegacyObligationSource
	periods *PeriodService
	metrics *observability.Metrics
	logger  *zap.Logger

	horizonDays    int
	maxConcurrency int
	now            func() time.Time
}

// NewObligationService creates the obligation service. horizonDays is the
// default forward range for unbounded list queries; maxConcurrency bounds
// the write fan-out of bulk recomputes.
func NewObligationService(
	store port.ObligationStore,
	legacy port.LegacyObligationSource,
	periods *PeriodService,
	metrics *observability.Metrics,
	logger *zap.Logger,
	horizonDays, maxConcurrency int,
) *ObligationService {
	if horizonDays <= 0 {
		horizonDays = 30
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &ObligationService{
		store:          store,
		legacy:         legacy,
		periods:        periods,
		metrics:        metrics,
		logger:         logger,
		horizonDays:    horizonDays,
		maxConcurrency: maxConcurrency,
		now:            time.Now,
	}
}

// ============================================================
// Two-schema resolver
// ============================================================

// resolve lists obligations from the current schema, falling back to the
// legacy tables only on the explicit missing-relation signal. Every
// returned obligation has its state pair derived as of today; the output
// is structurally identical regardless of which schema served it.
func (s *ObligationService) resolve(ctx context.Context, q port.ObligationQuery) ([]domain.Obligation, error) {
	obs, err := s.store.ListObligations(ctx, q)
	if err != nil {
		var schemaErr *domain.ErrSchemaUnavailable
		if !errors.As(err, &schemaErr) {
			return nil, err
		}

		s.metrics.IncrSchemaFallback(string(q.Kind))
		s.logger.Warn("falling back to legacy schema",
			zap.String("company_id", q.CompanyID),
			zap.String("kind", string(q.Kind)),
			zap.String("relation", schemaErr.Relation),
		)
		obs, err = s.legacy.ListLegacyObligations(ctx, q)
		if err != nil {
			return nil, err
		}
	}

	today := s.now()
	for i := range obs {
		obs[i].Refresh(today)
	}
	return obs, nil
}

// ============================================================
// List / Get
// ============================================================

// ListObligations returns obligations ranked by urgency. When the caller
// gives no date range, the window defaults to today through today plus the
// configured horizon. Store failures degrade to an empty list so dashboard
// reads never hard-fail.
func (s *ObligationService) ListObligations(ctx context.Context, q port.ObligationQuery) ([]domain.Obligation, error) {
	ctx, span := obligationTracer.Start(ctx, "ObligationService.ListObligations")
	defer span.End()
	span.SetAttributes(
		attribute.String("company.id", q.CompanyID),
		attribute.String("obligation.kind", string(q.Kind)),
	)

	if !q.Kind.Valid() {
		return nil, &domain.ErrValidation{Field: "kind", Message: "must be payable or receivable"}
	}

	if q.Start == nil && q.End == nil {
		start := s.now()
		end := start.AddDate(0, 0, s.horizonDays)
		q.Start, q.End = &start, &end
	}

	obs, err := s.resolve(ctx, q)
	if err != nil {
		s.logger.Error("obligation list failed, returning empty",
			zap.String("company_id", q.CompanyID),
			zap.String("kind", string(q.Kind)),
			zap.Error(err),
		)
		return []domain.Obligation{}, nil
	}

	domain.RankByUrgency(obs)
	return obs, nil
}

// GetObligation fetches one obligation with fresh derived state, scoped to
// the calling company.
func (s *ObligationService) GetObligation(ctx context.Context, companyID string, kind domain.ObligationKind, id string) (*domain.Obligation, error) {
	ctx, span := obligationTracer.Start(ctx, "ObligationService.GetObligation")
	defer span.End()

	if !kind.Valid() {
		return nil, &domain.ErrValidation{Field: "kind", Message: "must be payable or receivable"}
	}

	o, err := s.store.GetObligation(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if o.CompanyID != companyID {
		return nil, &domain.ErrNotFound{Resource: "obligation", ID: id}
	}
	o.Refresh(s.now())
	return o, nil
}

// ============================================================
// Create / Settle
// ============================================================

// CreateObligation registers a new payable or receivable. The derived
// state pair is computed before the insert so the stored columns are
// consistent from the start. Period aggregates for the company are
// invalidated because the new row can change cached range totals.
func (s *ObligationService) CreateObligation(ctx context.Context, o *domain.Obligation) (*domain.Obligation, error) {
	ctx, span := obligationTracer.Start(ctx, "ObligationService.CreateObligation")
	defer span.End()
	span.SetAttributes(attribute.String("company.id", o.CompanyID))

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("create_obligation", time.Since(start)) }()

	if !o.Kind.Valid() {
		return nil, &domain.ErrValidation{Field: "kind", Message: "must be payable or receivable"}
	}
	if o.Description == "" {
		return nil, &domain.ErrValidation{Field: "description", Message: "required"}
	}
	if o.Amount <= 0 || math.IsNaN(o.Amount) || math.IsInf(o.Amount, 0) {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be a positive finite number"}
	}
	if o.DueDate.IsZero() {
		return nil, &domain.ErrValidation{Field: "due_date", Message: "required"}
	}
	if o.PaymentDate != nil && o.PaymentDate.IsZero() {
		return nil, &domain.ErrValidation{Field: "payment_date", Message: "must be a valid date"}
	}

	o.ID = uuid.NewString()
	o.Refresh(s.now())

	created, err := s.store.CreateObligation(ctx, o)
	if err != nil {
		s.logger.Error("failed to create obligation",
			zap.String("company_id", o.CompanyID),
			zap.String("kind", string(o.Kind)),
			zap.Error(err),
		)
		return nil, err
	}

	s.periods.InvalidateCompany(o.CompanyID)

	s.logger.Info("obligation created",
		zap.String("company_id", created.CompanyID),
		zap.String("obligation_id", created.ID),
		zap.String("kind", string(created.Kind)),
		zap.Float64("amount", created.Amount),
	)
	return created, nil
}

// SettleObligation records a payment date and writes the new derived
// state pair back to the store. Settling an already-settled obligation
// overwrites the previous date; last writer wins.
func (s *ObligationService) SettleObligation(ctx context.Context, companyID string, kind domain.ObligationKind, id string, paymentDate time.Time) (*domain.Obligation, error) {
	ctx, span := obligationTracer.Start(ctx, "ObligationService.SettleObligation")
	defer span.End()
	span.SetAttributes(attribute.String("obligation.id", id))

	if paymentDate.IsZero() {
		return nil, &domain.ErrValidation{Field: "payment_date", Message: "required"}
	}

	o, err := s.GetObligation(ctx, companyID, kind, id)
	if err != nil {
		return nil, err
	}

	if err := s.store.SetPaymentDate(ctx, kind, id, paymentDate); err != nil {
		s.logger.Error("failed to set payment date",
			zap.String("obligation_id", id),
			zap.Error(err),
		)
		return nil, err
	}

	o.PaymentDate = &paymentDate
	o.Refresh(s.now())

	if err := s.store.WriteDerivedState(ctx, kind, id, o.Settlement, o.Timeliness); err != nil {
		// The payment date is recorded; the stale denormalized pair will be
		// corrected by the next recompute.
		s.logger.Warn("failed to write derived state after settlement",
			zap.String("obligation_id", id),
			zap.Error(err),
		)
	} else {
		s.metrics.AddStatesRecomputed(string(kind), 1)
	}

	s.periods.InvalidateCompany(companyID)

	s.logger.Info("obligation settled",
		zap.String("company_id", companyID),
		zap.String("obligation_id", id),
		zap.String("timeliness", string(o.Timeliness)),
	)
	return o, nil
}

// DeleteObligation removes an obligation after verifying company ownership.
func (s *ObligationService) DeleteObligation(ctx context.Context, companyID string, kind domain.ObligationKind, id string) error {
	ctx, span := obligationTracer.Start(ctx, "ObligationService.DeleteObligation")
	defer span.End()
	span.SetAttributes(attribute.String("obligation.id", id))

	if _, err := s.GetObligation(ctx, companyID, kind, id); err != nil {
		return err
	}
	if err := s.store.DeleteObligation(ctx, kind, id); err != nil {
		s.logger.Error("failed to delete obligation",
			zap.String("obligation_id", id),
			zap.Error(err),
		)
		return err
	}

	s.periods.InvalidateCompany(companyID)

	s.logger.Info("obligation deleted",
		zap.String("company_id", companyID),
		zap.String("obligation_id", id),
		zap.String("kind", string(kind)),
	)
	return nil
}

// ============================================================
// Views
// ============================================================

// UpcomingWindow returns up to limit obligations due on or after today,
// ranked by urgency. Settled obligations are included so the settled-late
// and settled-on-time tiers stay visible.
func (s *ObligationService) UpcomingWindow(ctx context.Context, companyID string, kind domain.ObligationKind, limit int) ([]domain.Obligation, error) {
	ctx, span := obligationTracer.Start(ctx, "ObligationService.UpcomingWindow")
	defer span.End()

	if !kind.Valid() {
		return nil, &domain.ErrValidation{Field: "kind", Message: "must be payable or receivable"}
	}
	if limit <= 0 {
		limit = 10
	}

	today := s.now()
	obs, err := s.resolve(ctx, port.ObligationQuery{
		CompanyID:      companyID,
		Kind:           kind,
		Start:          &today,
		IncludeSettled: true,
	})
	if err != nil {
		s.logger.Error("upcoming window read failed, returning empty",
			zap.String("company_id", companyID),
			zap.Error(err),
		)
		return []domain.Obligation{}, nil
	}

	return domain.UpcomingWindow(obs, today, limit), nil
}

// PeriodView returns all obligations of one kind due inside a calendar
// month, in due-date order, with per-tier counts for table headers.
func (s *ObligationService) PeriodView(ctx context.Context, companyID string, kind domain.ObligationKind, month time.Time) ([]domain.Obligation, domain.TierSummary, error) {
	ctx, span := obligationTracer.Start(ctx, "ObligationService.PeriodView")
	defer span.End()

	if !kind.Valid() {
		return nil, domain.TierSummary{}, &domain.ErrValidation{Field: "kind", Message: "must be payable or receivable"}
	}

	start := domain.MonthOf(month)
	end := start.AddDate(0, 1, -1)

	obs, err := s.resolve(ctx, port.ObligationQuery{
		CompanyID:      companyID,
		Kind:           kind,
		Start:          &start,
		End:            &end,
		IncludeSettled: true,
	})
	if err != nil {
		s.logger.Error("period view read failed, returning empty",
			zap.String("company_id", companyID),
			zap.Error(err),
		)
		return []domain.Obligation{}, domain.TierSummary{}, nil
	}

	// Both schemas return due-date order; the monthly table keeps it.
	// Urgency ranking is for the upcoming lists only.
	return obs, domain.SummarizeTiers(obs), nil
}

// ============================================================
// Bulk recompute
// ============================================================

// RecomputeStates re-derives and writes back the state pair for every
// current-schema obligation of a company, both kinds. Legacy tenants have
// no denormalized columns, so the missing-relation signal is returned to
// the caller unchanged. Returns the number of rows written.
func (s *ObligationService) RecomputeStates(ctx context.Context, companyID string) (int, error) {
	ctx, span := obligationTracer.Start(ctx, "ObligationService.RecomputeStates")
	defer span.End()
	span.SetAttributes(attribute.String("company.id", companyID))

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("recompute_states", time.Since(start)) }()

	today := s.now()
	var total int64

	for _, kind := range []domain.ObligationKind{domain.KindPayable, domain.KindReceivable} {
		obs, err := s.store.ListObligations(ctx, port.ObligationQuery{
			CompanyID:      companyID,
			Kind:           kind,
			IncludeSettled: true,
		})
		if err != nil {
			return int(total), err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.maxConcurrency)

		var written int64
		for i := range obs {
			o := obs[i]
			g.Go(func() error {
				settlement, timeliness := domain.DeriveState(o.DueDate, o.PaymentDate, today)
				if err := s.store.WriteDerivedState(gctx, kind, o.ID, settlement, timeliness); err != nil {
					return err
				}
				atomic.AddInt64(&written, 1)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			total += written
			return int(total), err
		}

		total += written
		s.metrics.AddStatesRecomputed(string(kind), int(written))
	}

	s.periods.InvalidateCompany(companyID)

	s.logger.Info("obligation states recomputed",
		zap.String("company_id", companyID),
		zap.Int64("written", total),
	)
	return int(total), nil
}

// RecomputeState re-derives and writes back the state pair for a single
// obligation, the targeted form of the bulk recompute.
func (s *ObligationService) RecomputeState(ctx context.Context, companyID string, kind domain.ObligationKind, id string) error {
	ctx, span := obligationTracer.Start(ctx, "ObligationService.RecomputeState")
	defer span.End()
	span.SetAttributes(attribute.String("obligation.id", id))

	o, err := s.GetObligation(ctx, companyID, kind, id)
	if err != nil {
		return err
	}
	if err := s.store.WriteDerivedState(ctx, kind, id, o.Settlement, o.Timeliness); err != nil {
		return err
	}

	s.metrics.AddStatesRecomputed(string(kind), 1)
	s.periods.InvalidateCompany(companyID)
	return nil
}
