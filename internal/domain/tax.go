package domain

import "github.com/shopspring/decimal"

// TaxRegime names the three Brazilian corporate tax computation methods.
type TaxRegime string

const (
	RegimeSimples   TaxRegime = "Simples Nacional"
	RegimePresumido TaxRegime = "Lucro Presumido"
	RegimeReal      TaxRegime = "Lucro Real"
)

// Valid reports whether the regime is one of the three known values.
func (r TaxRegime) Valid() bool {
	return r == RegimeSimples || r == RegimePresumido || r == RegimeReal
}

// Activity selects the presumed-profit ratio and the services levy.
type Activity string

const (
	ActivityServices Activity = "services"
	ActivityGoods    Activity = "goods"
)

// Valid reports whether the activity is one of the two known values.
func (a Activity) Valid() bool {
	return a == ActivityServices || a == ActivityGoods
}

// SimplesResult is the Simples Nacional computation over trailing-12-month
// revenue. When revenue exceeds the top bracket ceiling the regime does not
// apply; Eligible is false and every figure is zero.
type SimplesResult struct {
	Eligible      bool            `json:"eligible"`
	NominalRate   decimal.Decimal `json:"nominal_rate"`
	Deduction     decimal.Decimal `json:"deduction"`
	EffectiveRate decimal.Decimal `json:"effective_rate"`
	Annual        decimal.Decimal `json:"annual"`
	Monthly       decimal.Decimal `json:"monthly"`
}

// ProfitTaxResult covers Lucro Presumido and Lucro Real: same five levies,
// different tax base (presumed ratio vs. actual profit) and different
// PIS/COFINS rates. Eligible is false when revenue exceeds the regime's
// ceiling; the figures are still computed for reference but the regime
// never competes for best.
type ProfitTaxResult struct {
	Eligible      bool            `json:"eligible"`
	TaxBase       decimal.Decimal `json:"tax_base"`
	IRPJ          decimal.Decimal `json:"irpj"`
	CSLL          decimal.Decimal `json:"csll"`
	PIS           decimal.Decimal `json:"pis"`
	COFINS        decimal.Decimal `json:"cofins"`
	ISS           decimal.Decimal `json:"iss"`
	Total         decimal.Decimal `json:"total"`
	EffectiveRate decimal.Decimal `json:"effective_rate"`
}

// RegimeSnapshot is the ephemeral three-way comparison computed per query.
// It is never persisted.
type RegimeSnapshot struct {
	Revenue12M decimal.Decimal `json:"revenue_12m"`
	Costs      decimal.Decimal `json:"costs"`
	Activity   Activity        `json:"activity"`

	CurrentRegime TaxRegime `json:"current_regime"`
	// RegimeCeiling is zero for regimes without a revenue ceiling
	// (Lucro Real); CeilingPct and Headroom are zero in that case.
	RegimeCeiling decimal.Decimal `json:"regime_ceiling"`
	CeilingPct    decimal.Decimal `json:"ceiling_pct"`
	Headroom      decimal.Decimal `json:"headroom"`
	NearCeiling   bool            `json:"near_ceiling"`

	Simples   SimplesResult   `json:"simples"`
	Presumido ProfitTaxResult `json:"presumido"`
	Real      ProfitTaxResult `json:"real"`

	CurrentLiability decimal.Decimal `json:"current_liability"`
	BestRegime       TaxRegime       `json:"best_regime"`
	BestLiability    decimal.Decimal `json:"best_liability"`
	// Savings is current minus best, unclamped: zero or negative means
	// the current regime is already optimal.
	Savings decimal.Decimal `json:"savings"`
}
