package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gestorpj/fiscal-engine-go/internal/domain"
	"github.com/gestorpj/fiscal-engine-go/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
)

// incomeStatementRow maps the income_statement table. The operating
// expenses column is named plain "expenses" in the schema.
type incomeStatementRow struct {
	ID             string  `json:"id"`
	CompanyID      string  `json:"company_id"`
	ReferenceMonth string  `json:"reference_month"`
	GrossRevenue   float64 `json:"gross_revenue"`
	Deductions     float64 `json:"deductions"`
	NetRevenue     float64 `json:"net_revenue"`
	Costs          float64 `json:"costs"`
	GrossProfit    float64 `json:"gross_profit"`
	Expenses       float64 `json:"expenses"`
	NetProfit      float64 `json:"net_profit"`
}

func (r *incomeStatementRow) toBucket() (domain.PeriodBucket, error) {
	month, ok := parseStoreDate(r.ReferenceMonth)
	if !ok {
		return domain.PeriodBucket{}, &domain.ErrMalformedRecord{ID: r.ID, Field: "reference_month"}
	}
	return domain.PeriodBucket{
		ID:                r.ID,
		CompanyID:         r.CompanyID,
		ReferenceMonth:    domain.MonthOf(month),
		GrossRevenue:      r.GrossRevenue,
		Deductions:        r.Deductions,
		NetRevenue:        r.NetRevenue,
		Costs:             r.Costs,
		GrossProfit:       r.GrossProfit,
		OperatingExpenses: r.Expenses,
		NetProfit:         r.NetProfit,
	}, nil
}

// GetPeriod fetches the income statement bucket for one reference month.
// Returns *domain.ErrNotFound when the bucket does not exist yet.
func (c *Client) GetPeriod(ctx context.Context, companyID string, month time.Time) (*domain.PeriodBucket, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetPeriod")
	defer span.End()
	span.SetAttributes(
		attribute.String("company.id", companyID),
		attribute.String("period.month", month.Format(domain.DateOnly)),
	)

	path := fmt.Sprintf("income_statement?select=*&company_id=eq.%s&reference_month=eq.%s&limit=1",
		companyID, month.Format(domain.DateOnly))

	var result *domain.PeriodBucket
	var notFound *domain.ErrNotFound

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				// Expected for months never touched; not a failure
				// for the breaker and not worth a retry.
				notFound = &domain.ErrNotFound{Resource: "income_statement", ID: month.Format(domain.DateOnly)}
				return nil
			}

			var rows []incomeStatementRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode income_statement: %w", err)
			}
			if len(rows) == 0 {
				notFound = &domain.ErrNotFound{Resource: "income_statement", ID: month.Format(domain.DateOnly)}
				return nil
			}

			bucket, err := rows[0].toBucket()
			if err != nil {
				return err
			}
			result = &bucket
			return nil
		})
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/income_statement", Err: err}
	}
	if notFound != nil {
		return nil, notFound
	}
	return result, nil
}

// CreatePeriod inserts a bucket, normally a zero-filled one created on
// first access to a month.
func (c *Client) CreatePeriod(ctx context.Context, b *domain.PeriodBucket) (*domain.PeriodBucket, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreatePeriod")
	defer span.End()

	row := map[string]any{
		"id":              b.ID,
		"company_id":      b.CompanyID,
		"reference_month": b.ReferenceMonth.Format(domain.DateOnly),
		"gross_revenue":   b.GrossRevenue,
		"deductions":      b.Deductions,
		"net_revenue":     b.NetRevenue,
		"costs":           b.Costs,
		"gross_profit":    b.GrossProfit,
		"expenses":        b.OperatingExpenses,
		"net_profit":      b.NetProfit,
	}

	body, err := c.doPost(ctx, "income_statement", row)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/income_statement", Err: err}
	}

	var rows []incomeStatementRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode income_statement insert: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no result from income_statement insert")
	}
	bucket, err := rows[0].toBucket()
	if err != nil {
		return nil, err
	}
	return &bucket, nil
}
