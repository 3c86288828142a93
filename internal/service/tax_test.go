package service_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/gestorpj/fiscal-engine-go/internal/domain"
	"github.com/gestorpj/fiscal-engine-go/internal/infra/observability"
	"github.com/gestorpj/fiscal-engine-go/internal/service"

	"go.uber.org/zap"
)

func newTaxService(store *mockPeriodStore) *service.TaxService {
	return service.NewTaxService(newPeriodService(store), observability.NewMetrics(), zap.NewNop())
}

func compareInput(revenue float64) service.CompareInput {
	return service.CompareInput{
		Revenue12M:    revenue,
		Activity:      domain.ActivityServices,
		CurrentRegime: domain.RegimeSimples,
	}
}

func TestCompareRegimes_SimplesWinsSmallRevenue(t *testing.T) {
	svc := newTaxService(&mockPeriodStore{})

	snap, err := svc.CompareRegimes(context.Background(), compareInput(100_000))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if snap.BestRegime != domain.RegimeSimples {
		t.Errorf("expected Simples best, got %s", snap.BestRegime)
	}
	assertDecimal(t, "best liability", snap.BestLiability, 6_000)
	assertDecimal(t, "current liability", snap.CurrentLiability, 6_000)
	if !snap.Savings.IsZero() {
		t.Errorf("current regime already optimal, expected zero savings, got %s", snap.Savings)
	}
}

func TestCompareRegimes_AllThreeComputed(t *testing.T) {
	svc := newTaxService(&mockPeriodStore{})

	snap, err := svc.CompareRegimes(context.Background(), service.CompareInput{
		Revenue12M:    500_000,
		Costs:         400_000,
		Activity:      domain.ActivityServices,
		CurrentRegime: domain.RegimePresumido,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !snap.Simples.Eligible {
		t.Error("expected Simples eligible at 500k")
	}
	if snap.Presumido.Total.IsZero() || snap.Real.Total.IsZero() {
		t.Error("expected all regimes computed")
	}
	if !snap.CurrentLiability.Equal(snap.Presumido.Total) {
		t.Errorf("expected current liability %s, got %s", snap.Presumido.Total, snap.CurrentLiability)
	}
}

func TestCompareRegimes_IneligibleSimplesNeverCompetes(t *testing.T) {
	svc := newTaxService(&mockPeriodStore{})

	// Above the Simples ceiling the ineligible zero liability must not be
	// picked as the cheapest option.
	snap, err := svc.CompareRegimes(context.Background(), service.CompareInput{
		Revenue12M:    6_000_000,
		Costs:         5_500_000,
		Activity:      domain.ActivityGoods,
		CurrentRegime: domain.RegimePresumido,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if snap.Simples.Eligible {
		t.Error("expected Simples ineligible at 6M")
	}
	if snap.BestRegime == domain.RegimeSimples {
		t.Error("ineligible regime selected as best")
	}
	if snap.BestLiability.IsZero() {
		t.Error("expected a real liability from an eligible regime")
	}
}

func TestCompareRegimes_IneligibleCurrentYieldsNegativeSavings(t *testing.T) {
	svc := newTaxService(&mockPeriodStore{})

	// Current regime ineligible: its liability stays zero, so savings
	// against the best eligible regime goes negative and is not clamped.
	snap, err := svc.CompareRegimes(context.Background(), compareInput(6_000_000))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !snap.Savings.IsNegative() {
		t.Errorf("expected negative savings, got %s", snap.Savings)
	}
}

func TestCompareRegimes_NearCeiling(t *testing.T) {
	svc := newTaxService(&mockPeriodStore{})

	snap, err := svc.CompareRegimes(context.Background(), compareInput(4_000_000))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !snap.NearCeiling {
		t.Error("expected near-ceiling flag at 83% utilization")
	}
	assertDecimal(t, "headroom", snap.Headroom, 800_000)
	assertDecimal(t, "ceiling", snap.RegimeCeiling, 4_800_000)
}

func TestCompareRegimes_BelowCeilingThreshold(t *testing.T) {
	svc := newTaxService(&mockPeriodStore{})

	snap, err := svc.CompareRegimes(context.Background(), compareInput(3_000_000))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if snap.NearCeiling {
		t.Error("expected no near-ceiling flag at 62% utilization")
	}
}

func TestCompareRegimes_NoCeilingForLucroReal(t *testing.T) {
	svc := newTaxService(&mockPeriodStore{})

	snap, err := svc.CompareRegimes(context.Background(), service.CompareInput{
		Revenue12M:    90_000_000,
		Costs:         80_000_000,
		Activity:      domain.ActivityGoods,
		CurrentRegime: domain.RegimeReal,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if snap.NearCeiling {
		t.Error("Lucro Real has no ceiling to approach")
	}
	if !snap.RegimeCeiling.IsZero() {
		t.Errorf("expected zero ceiling, got %s", snap.RegimeCeiling)
	}
	if snap.BestRegime != domain.RegimeReal {
		t.Errorf("expected Real as only eligible regime above 78M, got %s", snap.BestRegime)
	}
	if snap.Presumido.Eligible {
		t.Error("expected Presumido flagged ineligible above 78M")
	}
	if !snap.Real.Eligible {
		t.Error("expected Real always eligible")
	}
}

func TestCompareRegimes_Validation(t *testing.T) {
	svc := newTaxService(&mockPeriodStore{})

	tests := []struct {
		name string
		in   service.CompareInput
	}{
		{"negative revenue", service.CompareInput{Revenue12M: -1, Activity: domain.ActivityServices, CurrentRegime: domain.RegimeSimples}},
		{"nan revenue", service.CompareInput{Revenue12M: math.NaN(), Activity: domain.ActivityServices, CurrentRegime: domain.RegimeSimples}},
		{"inf costs", service.CompareInput{Revenue12M: 1000, Costs: math.Inf(1), Activity: domain.ActivityServices, CurrentRegime: domain.RegimeSimples}},
		{"bad activity", service.CompareInput{Revenue12M: 1000, Activity: "mining", CurrentRegime: domain.RegimeSimples}},
		{"bad regime", service.CompareInput{Revenue12M: 1000, Activity: domain.ActivityServices, CurrentRegime: "MEI"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CompareRegimes(context.Background(), tt.in)
			var vErr *domain.ErrValidation
			if !errors.As(err, &vErr) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestRegimeOutlook(t *testing.T) {
	thisMonth := domain.MonthOf(time.Now().UTC())
	lastMonth := thisMonth.AddDate(0, -1, 0)
	store := &mockPeriodStore{buckets: map[string]*domain.PeriodBucket{
		periodKey("comp-1", thisMonth): {CompanyID: "comp-1", ReferenceMonth: thisMonth, GrossRevenue: 60_000, Costs: 10_000, OperatingExpenses: 5_000},
		periodKey("comp-1", lastMonth): {CompanyID: "comp-1", ReferenceMonth: lastMonth, GrossRevenue: 40_000, Costs: 8_000, OperatingExpenses: 2_000},
	}}
	svc := newTaxService(store)

	snap, err := svc.RegimeOutlook(context.Background(), "comp-1", domain.ActivityServices, domain.RegimeSimples)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	assertDecimal(t, "revenue", snap.Revenue12M, 100_000)
	assertDecimal(t, "costs", snap.Costs, 25_000)
	if snap.BestRegime != domain.RegimeSimples {
		t.Errorf("expected Simples best at 100k, got %s", snap.BestRegime)
	}
}
