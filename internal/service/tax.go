package service

import (
	"context"
	"math"
	"time"

	"github.com/gestorpj/fiscal-engine-go/internal/domain"
	"github.com/gestorpj/fiscal-engine-go/internal/infra/observability"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var taxTracer = otel.Tracer("service/tax")

// nearCeilingPct is the ceiling utilization that raises the advisory flag.
var nearCeilingPct = decimal.NewFromInt(80)

// TaxService runs the three-way regime comparison and the near-ceiling
// monitor. Snapshots are computed per query and never persisted.
type TaxService struct {
	periods *PeriodService
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewTaxService creates the tax comparison service.
func NewTaxService(periods *PeriodService, metrics *observability.Metrics, logger *zap.Logger) *TaxService {
	return &TaxService{
		periods: periods,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// CompareInput carries the figures for an explicit comparison request.
type CompareInput struct {
	Revenue12M    float64          `json:"revenue_12m"`
	Costs         float64          `json:"costs"`
	Activity      domain.Activity  `json:"activity"`
	CurrentRegime domain.TaxRegime `json:"current_regime"`
}

func validFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// CompareRegimes computes all three regimes side by side and picks the
// cheapest eligible one. Savings is current minus best, unclamped: zero
// or negative means the current regime is already optimal.
func (s *TaxService) CompareRegimes(ctx context.Context, in CompareInput) (*domain.RegimeSnapshot, error) {
	_, span := taxTracer.Start(ctx, "TaxService.CompareRegimes")
	defer span.End()
	span.SetAttributes(
		attribute.Float64("revenue_12m", in.Revenue12M),
		attribute.String("current_regime", string(in.CurrentRegime)),
	)

	if in.Revenue12M < 0 || !validFinite(in.Revenue12M) {
		return nil, &domain.ErrValidation{Field: "revenue_12m", Message: "must be a non-negative finite number"}
	}
	if in.Costs < 0 || !validFinite(in.Costs) {
		return nil, &domain.ErrValidation{Field: "costs", Message: "must be a non-negative finite number"}
	}
	if !in.Activity.Valid() {
		return nil, &domain.ErrValidation{Field: "activity", Message: "must be services or goods"}
	}
	if !in.CurrentRegime.Valid() {
		return nil, &domain.ErrValidation{Field: "current_regime", Message: "unknown regime"}
	}

	revenue := decimal.NewFromFloat(in.Revenue12M)
	costs := decimal.NewFromFloat(in.Costs)

	snap := &domain.RegimeSnapshot{
		Revenue12M:    revenue,
		Costs:         costs,
		Activity:      in.Activity,
		CurrentRegime: in.CurrentRegime,
		Simples:       CalcSimplesNacional(revenue),
		Presumido:     CalcLucroPresumido(revenue, in.Activity),
		Real:          CalcLucroReal(revenue, costs, in.Activity),
	}

	// Ceiling monitor for the current regime.
	if ceiling := RegimeCeiling(in.CurrentRegime); ceiling.IsPositive() {
		snap.RegimeCeiling = ceiling
		snap.CeilingPct = revenue.Div(ceiling).Mul(hundred)
		snap.Headroom = ceiling.Sub(revenue)
		snap.NearCeiling = snap.CeilingPct.GreaterThanOrEqual(nearCeilingPct)
	}

	// Candidates in fixed order; an ineligible Simples never competes.
	type candidate struct {
		regime    domain.TaxRegime
		liability decimal.Decimal
		eligible  bool
	}
	candidates := []candidate{
		{domain.RegimeSimples, snap.Simples.Annual, snap.Simples.Eligible},
		{domain.RegimePresumido, snap.Presumido.Total, snap.Presumido.Eligible},
		{domain.RegimeReal, snap.Real.Total, snap.Real.Eligible},
	}

	first := true
	for _, c := range candidates {
		if c.regime == in.CurrentRegime && c.eligible {
			snap.CurrentLiability = c.liability
		}
		if !c.eligible {
			continue
		}
		if first || c.liability.LessThan(snap.BestLiability) {
			snap.BestRegime = c.regime
			snap.BestLiability = c.liability
			first = false
		}
	}

	snap.Savings = snap.CurrentLiability.Sub(snap.BestLiability)

	s.metrics.IncrRegimeComparison(string(snap.BestRegime))
	s.logger.Info("regime comparison",
		zap.String("current_regime", string(in.CurrentRegime)),
		zap.String("best_regime", string(snap.BestRegime)),
		zap.String("savings", snap.Savings.StringFixed(2)),
		zap.Bool("near_ceiling", snap.NearCeiling),
	)
	return snap, nil
}

// RegimeOutlook runs the comparison against the company's own trailing
// 12-month figures: revenue from the rolling window, costs as the sum of
// costs plus operating expenses over the same months.
func (s *TaxService) RegimeOutlook(ctx context.Context, companyID string, activity domain.Activity, currentRegime domain.TaxRegime) (*domain.RegimeSnapshot, error) {
	ctx, span := taxTracer.Start(ctx, "TaxService.RegimeOutlook")
	defer span.End()
	span.SetAttributes(attribute.String("company.id", companyID))

	buckets, err := s.periods.RollingWindow(ctx, companyID, s.now())
	if err != nil {
		return nil, err
	}

	var revenue, costs float64
	for i := range buckets {
		revenue += buckets[i].GrossRevenue
		costs += buckets[i].Costs + buckets[i].OperatingExpenses
	}

	return s.CompareRegimes(ctx, CompareInput{
		Revenue12M:    revenue,
		Costs:         costs,
		Activity:      activity,
		CurrentRegime: currentRegime,
	})
}
