package domain

import "time"

// PeriodBucket is the per-company, per-calendar-month income statement
// aggregate (the income_statement table). Buckets are created lazily,
// zero-filled, and never deleted by the engine.
type PeriodBucket struct {
	ID                string    `json:"id,omitempty"`
	CompanyID         string    `json:"company_id"`
	ReferenceMonth    time.Time `json:"reference_month"`
	GrossRevenue      float64   `json:"gross_revenue"`
	Deductions        float64   `json:"deductions"`
	NetRevenue        float64   `json:"net_revenue"`
	Costs             float64   `json:"costs"`
	GrossProfit       float64   `json:"gross_profit"`
	OperatingExpenses float64   `json:"operating_expenses"`
	NetProfit         float64   `json:"net_profit"`
}

// ZeroBucket returns the zero-filled bucket for a company+month, used both
// as the insert payload for lazy creation and as the safe default when the
// store is unreachable.
func ZeroBucket(companyID string, month time.Time) *PeriodBucket {
	return &PeriodBucket{
		CompanyID:      companyID,
		ReferenceMonth: MonthOf(month),
	}
}

// MonthOf normalizes any date to the first day of its calendar month,
// the key format used by the period store (YYYY-MM-01).
func MonthOf(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// RangeTotals aggregates buckets over a closed month range. The walk is by
// whole months even when the caller's day-level range does not align to
// month boundaries; that is a deliberate simplification inherited from the
// dashboard, not a bug.
type RangeTotals struct {
	CompanyID         string    `json:"company_id"`
	StartMonth        time.Time `json:"start_month"`
	EndMonth          time.Time `json:"end_month"`
	Months            int       `json:"months"`
	GrossRevenue      float64   `json:"gross_revenue"`
	Costs             float64   `json:"costs"`
	OperatingExpenses float64   `json:"operating_expenses"`
	NetProfit         float64   `json:"net_profit"`
}
