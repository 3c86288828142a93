package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
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

var periodTracer = otel.Tracer("service/periods")

// rollingMonths is the trailing window used for regime comparisons.
const rollingMonths = 12

// PeriodService manages monthly income-statement buckets: lazy creation,
// rolling-revenue windows and cached range aggregation.
type PeriodService struct {
	store   port.PeriodStore
	cache   port.Cache[*domain.RangeTotals]
	metrics *observability.Metrics
	logger  *zap.Logger

	maxConcurrency int
	now            func() time.Time
}

// NewPeriodService creates the period service. maxConcurrency bounds the
// fan-out of multi-month bucket fetches.
func NewPeriodService(
	store port.PeriodStore,
	cache port.Cache[*domain.RangeTotals],
	metrics *observability.Metrics,
	logger *zap.Logger,
	maxConcurrency int,
) *PeriodService {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &PeriodService{
		store:          store,
		cache:          cache,
		metrics:        metrics,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		now:            time.Now,
	}
}

// ============================================================
// Lazy bucket access
// ============================================================

// GetOrCreatePeriod returns the bucket for a month, creating a zero-filled
// one on first access. When the store is unreachable a transient zero
// bucket is returned so aggregate reads keep working; it is not persisted.
func (s *PeriodService) GetOrCreatePeriod(ctx context.Context, companyID string, month time.Time) (*domain.PeriodBucket, error) {
	ctx, span := periodTracer.Start(ctx, "PeriodService.GetOrCreatePeriod")
	defer span.End()
	span.SetAttributes(
		attribute.String("company.id", companyID),
		attribute.String("period.month", domain.MonthOf(month).Format(domain.DateOnly)),
	)

	bucket, err := s.store.GetPeriod(ctx, companyID, domain.MonthOf(month))
	if err == nil {
		return bucket, nil
	}

	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		s.logger.Warn("period read failed, using zero bucket",
			zap.String("company_id", companyID),
			zap.Error(err),
		)
		return domain.ZeroBucket(companyID, month), nil
	}

	fresh := domain.ZeroBucket(companyID, month)
	fresh.ID = uuid.NewString()
	created, err := s.store.CreatePeriod(ctx, fresh)
	if err != nil {
		s.logger.Warn("period create failed, using zero bucket",
			zap.String("company_id", companyID),
			zap.Error(err),
		)
		return domain.ZeroBucket(companyID, month), nil
	}

	s.logger.Info("period bucket created",
		zap.String("company_id", companyID),
		zap.String("reference_month", created.ReferenceMonth.Format(domain.DateOnly)),
	)
	return created, nil
}

// ============================================================
// Rolling window
// ============================================================

// RollingWindow fetches the trailing 12 monthly buckets ending at the
// month of end, inclusive. Months without a bucket are created zero-filled
// so every visited month stays editable afterwards. Fetches fan out
// concurrently.
func (s *PeriodService) RollingWindow(ctx context.Context, companyID string, end time.Time) ([]domain.PeriodBucket, error) {
	ctx, span := periodTracer.Start(ctx, "PeriodService.RollingWindow")
	defer span.End()
	span.SetAttributes(attribute.String("company.id", companyID))

	endMonth := domain.MonthOf(end)
	buckets := make([]domain.PeriodBucket, rollingMonths)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrency)

	for i := 0; i < rollingMonths; i++ {
		i := i
		month := endMonth.AddDate(0, i-(rollingMonths-1), 0)
		g.Go(func() error {
			bucket, err := s.GetOrCreatePeriod(gctx, companyID, month)
			if err != nil {
				return err
			}
			buckets[i] = *bucket
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return buckets, nil
}

// RollingRevenue sums gross revenue over the trailing 12 months ending at
// the month of end. This is the revenue figure every regime computation
// keys on.
func (s *PeriodService) RollingRevenue(ctx context.Context, companyID string, end time.Time) (float64, error) {
	buckets, err := s.RollingWindow(ctx, companyID, end)
	if err != nil {
		return 0, err
	}
	var total float64
	for i := range buckets {
		total += buckets[i].GrossRevenue
	}
	return total, nil
}

// ============================================================
// Range aggregation
// ============================================================

func rangeKey(companyID string, start, end time.Time) string {
	return fmt.Sprintf("%s|%s|%s",
		companyID,
		domain.MonthOf(start).Format(domain.DateOnly),
		domain.MonthOf(end).Format(domain.DateOnly),
	)
}

// RangeTotals aggregates buckets over a closed month range, walking whole
// months from the month of start through the month of end. Results are
// cached per company+range and invalidated whenever the company's
// obligations change.
func (s *PeriodService) RangeTotals(ctx context.Context, companyID string, start, end time.Time) (*domain.RangeTotals, error) {
	ctx, span := periodTracer.Start(ctx, "PeriodService.RangeTotals")
	defer span.End()
	span.SetAttributes(attribute.String("company.id", companyID))

	startMonth := domain.MonthOf(start)
	endMonth := domain.MonthOf(end)
	if endMonth.Before(startMonth) {
		return nil, &domain.ErrValidation{Field: "end", Message: "must not precede start"}
	}

	key := rangeKey(companyID, start, end)
	if cached, ok := s.cache.Get(key); ok {
		s.metrics.IncrCacheHit("periods")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("periods")

	totals := &domain.RangeTotals{
		CompanyID:  companyID,
		StartMonth: startMonth,
		EndMonth:   endMonth,
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrency)

	for month := startMonth; !month.After(endMonth); month = month.AddDate(0, 1, 0) {
		month := month
		g.Go(func() error {
			bucket, err := s.store.GetPeriod(gctx, companyID, month)
			if err != nil {
				var notFound *domain.ErrNotFound
				if errors.As(err, &notFound) {
					return nil
				}
				return err
			}
			mu.Lock()
			totals.GrossRevenue += bucket.GrossRevenue
			totals.Costs += bucket.Costs
			totals.OperatingExpenses += bucket.OperatingExpenses
			totals.NetProfit += bucket.NetProfit
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	totals.Months = monthsBetween(startMonth, endMonth)
	s.cache.Set(key, totals)
	return totals, nil
}

func monthsBetween(start, end time.Time) int {
	years := end.Year() - start.Year()
	months := int(end.Month()) - int(start.Month())
	return years*12 + months + 1
}

// InvalidateCompany drops every cached aggregation for a company.
func (s *PeriodService) InvalidateCompany(companyID string) {
	s.cache.DeletePrefix(companyID + "|")
}

// Ping checks store reachability for health reporting. A missing bucket is
// a healthy answer; only transport-level failures count.
func (s *PeriodService) Ping(ctx context.Context) error {
	_, err := s.store.GetPeriod(ctx, "health-check", domain.MonthOf(s.now()))
	var notFound *domain.ErrNotFound
	if err != nil && errors.As(err, &notFound) {
		return nil
	}
	return err
}
