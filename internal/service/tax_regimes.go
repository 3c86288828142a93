package service

import (
	"github.com/gestorpj/fiscal-engine-go/internal/domain"
	"github.com/shopspring/decimal"
)

// ============================================================
// Regime computations (pure)
// ============================================================
//
// All money math here is decimal. Revenue figures arrive as trailing
// 12-month totals; monthly values are the annual figure divided by 12.

// Simples Nacional progressive table (Anexo III): bracket ceiling,
// nominal rate, fixed deduction.
var simplesBrackets = []struct {
	Ceiling   decimal.Decimal
	Rate      decimal.Decimal
	Deduction decimal.Decimal
}{
	{decimal.NewFromInt(180_000), decimal.NewFromFloat(0.06), decimal.Zero},
	{decimal.NewFromInt(360_000), decimal.NewFromFloat(0.112), decimal.NewFromInt(9_360)},
	{decimal.NewFromInt(720_000), decimal.NewFromFloat(0.135), decimal.NewFromInt(17_640)},
	{decimal.NewFromInt(1_800_000), decimal.NewFromFloat(0.16), decimal.NewFromInt(35_640)},
	{decimal.NewFromInt(3_600_000), decimal.NewFromFloat(0.21), decimal.NewFromInt(125_640)},
	{decimal.NewFromInt(4_800_000), decimal.NewFromFloat(0.33), decimal.NewFromInt(648_000)},
}

var (
	// Revenue ceilings per regime. Lucro Real has none.
	simplesCeiling   = decimal.NewFromInt(4_800_000)
	presumidoCeiling = decimal.NewFromInt(78_000_000)

	// Presumed-profit ratios.
	presumptionServices = decimal.NewFromFloat(0.32)
	presumptionGoods    = decimal.NewFromFloat(0.08)

	// IRPJ: 15% plus a 10% surtax on the base above R$240k/year.
	irpjRate          = decimal.NewFromFloat(0.15)
	irpjSurtaxRate    = decimal.NewFromFloat(0.10)
	irpjSurtaxCeiling = decimal.NewFromInt(240_000)

	csllRate = decimal.NewFromFloat(0.09)

	// PIS/COFINS: cumulative regime under Presumido, non-cumulative
	// under Real.
	pisCumulative      = decimal.NewFromFloat(0.0065)
	cofinsCumulative   = decimal.NewFromFloat(0.03)
	pisNonCumulative   = decimal.NewFromFloat(0.0165)
	cofinsNonCumulative = decimal.NewFromFloat(0.076)

	issRate = decimal.NewFromFloat(0.05)

	twelve  = decimal.NewFromInt(12)
	hundred = decimal.NewFromInt(100)
)

// RegimeCeiling returns the annual revenue ceiling for a regime, zero for
// regimes without one.
func RegimeCeiling(regime domain.TaxRegime) decimal.Decimal {
	switch regime {
	case domain.RegimeSimples:
		return simplesCeiling
	case domain.RegimePresumido:
		return presumidoCeiling
	default:
		return decimal.Zero
	}
}

// CalcSimplesNacional computes the Simples Nacional liability from the
// progressive bracket table. Revenue above the top bracket disqualifies
// the regime entirely.
func CalcSimplesNacional(revenue12M decimal.Decimal) domain.SimplesResult {
	if revenue12M.GreaterThan(simplesCeiling) {
		return domain.SimplesResult{Eligible: false}
	}
	if revenue12M.IsZero() {
		return domain.SimplesResult{Eligible: true}
	}

	for _, b := range simplesBrackets {
		if revenue12M.LessThanOrEqual(b.Ceiling) {
			annual := revenue12M.Mul(b.Rate).Sub(b.Deduction)
			if annual.IsNegative() {
				annual = decimal.Zero
			}
			return domain.SimplesResult{
				Eligible:      true,
				NominalRate:   b.Rate.Mul(hundred),
				Deduction:     b.Deduction,
				EffectiveRate: annual.Div(revenue12M).Mul(hundred),
				Annual:        annual,
				Monthly:       annual.Div(twelve),
			}
		}
	}
	// Unreachable: the top bracket ceiling equals the regime ceiling.
	return domain.SimplesResult{Eligible: false}
}

// irpj computes 15% of the base plus the 10% surtax on the portion above
// the annual surtax ceiling.
func irpj(base decimal.Decimal) decimal.Decimal {
	tax := base.Mul(irpjRate)
	if excess := base.Sub(irpjSurtaxCeiling); excess.IsPositive() {
		tax = tax.Add(excess.Mul(irpjSurtaxRate))
	}
	return tax
}

// CalcLucroPresumido computes annual liability under presumed profit:
// the tax base is a fixed fraction of revenue, PIS/COFINS are cumulative,
// and service companies add ISS on gross revenue.
func CalcLucroPresumido(revenue12M decimal.Decimal, activity domain.Activity) domain.ProfitTaxResult {
	presumption := presumptionGoods
	if activity == domain.ActivityServices {
		presumption = presumptionServices
	}
	base := revenue12M.Mul(presumption)

	r := domain.ProfitTaxResult{
		Eligible: revenue12M.LessThanOrEqual(presumidoCeiling),
		TaxBase:  base,
		IRPJ:     irpj(base),
		CSLL:     base.Mul(csllRate),
		PIS:      revenue12M.Mul(pisCumulative),
		COFINS:   revenue12M.Mul(cofinsCumulative),
	}
	if activity == domain.ActivityServices {
		r.ISS = revenue12M.Mul(issRate)
	}
	r.Total = r.IRPJ.Add(r.CSLL).Add(r.PIS).Add(r.COFINS).Add(r.ISS)
	if revenue12M.IsPositive() {
		r.EffectiveRate = r.Total.Div(revenue12M).Mul(hundred)
	}
	return r
}

// CalcLucroReal computes annual liability on actual profit, floored at
// zero: a loss-making year owes no IRPJ/CSLL but still owes PIS/COFINS
// on revenue.
func CalcLucroReal(revenue12M, costs decimal.Decimal, activity domain.Activity) domain.ProfitTaxResult {
	profit := revenue12M.Sub(costs)
	if profit.IsNegative() {
		profit = decimal.Zero
	}

	// Lucro Real has no revenue ceiling.
	r := domain.ProfitTaxResult{
		Eligible: true,
		TaxBase:  profit,
		IRPJ:     irpj(profit),
		CSLL:     profit.Mul(csllRate),
		PIS:      revenue12M.Mul(pisNonCumulative),
		COFINS:   revenue12M.Mul(cofinsNonCumulative),
	}
	if activity == domain.ActivityServices {
		r.ISS = revenue12M.Mul(issRate)
	}
	r.Total = r.IRPJ.Add(r.CSLL).Add(r.PIS).Add(r.COFINS).Add(r.ISS)
	if revenue12M.IsPositive() {
		r.EffectiveRate = r.Total.Div(revenue12M).Mul(hundred)
	}
	return r
}
