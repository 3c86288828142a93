package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gestorpj/fiscal-engine-go/internal/domain"
	"github.com/gestorpj/fiscal-engine-go/internal/infra/resilience"
	"github.com/gestorpj/fiscal-engine-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Legacy schema: tax_obligations + invoices
// ============================================================
//
// Older tenants predate the accounts_* tables. Their payables live in
// tax_obligations plus inbound invoices, and their receivables are the
// outbound invoices. Invoices carry no due date, so issue_date stands in.

type taxObligationRow struct {
	ID             string   `json:"id"`
	CompanyID      string   `json:"company_id"`
	ObligationType string   `json:"obligation_type"`
	Amount         *float64 `json:"amount"`
	DueDate        string   `json:"due_date"`
	Status         string   `json:"status"`
	PaymentDate    *string  `json:"payment_date"`
}

type invoiceRow struct {
	ID            string   `json:"id"`
	CompanyID     string   `json:"company_id"`
	Number        string   `json:"invoice_number"`
	Type          string   `json:"invoice_type"`
	IssuerName    string   `json:"issuer_name"`
	RecipientName string   `json:"recipient_name"`
	TotalValue    *float64 `json:"total_value"`
	IssueDate     string   `json:"issue_date"`
	Status        string   `json:"status"`
	PaymentDate   *string  `json:"payment_date"`
}

func (r *taxObligationRow) toObligation() (domain.Obligation, bool) {
	due, ok := parseStoreDate(r.DueDate)
	if !ok {
		return domain.Obligation{}, false
	}
	amount := 0.0
	if r.Amount != nil {
		amount = *r.Amount
	}
	return domain.Obligation{
		ID:          r.ID,
		CompanyID:   r.CompanyID,
		Kind:        domain.KindPayable,
		Description: r.ObligationType,
		Amount:      amount,
		DueDate:     due,
		PaymentDate: legacyPaymentDate(r.Status, r.PaymentDate, due),
	}, true
}

func (r *invoiceRow) toObligation(kind domain.ObligationKind) (domain.Obligation, bool) {
	due, ok := parseStoreDate(r.IssueDate)
	if !ok {
		return domain.Obligation{}, false
	}
	amount := 0.0
	if r.TotalValue != nil {
		amount = *r.TotalValue
	}

	description := fmt.Sprintf("NF %s - %s", r.Number, r.IssuerName)
	counterparty := r.IssuerName
	if kind == domain.KindReceivable {
		description = fmt.Sprintf("NF %s - %s", r.Number, r.RecipientName)
		counterparty = r.RecipientName
	}

	return domain.Obligation{
		ID:               r.ID,
		CompanyID:        r.CompanyID,
		Kind:             kind,
		Description:      description,
		CounterpartyName: counterparty,
		Amount:           amount,
		DueDate:          due,
		PaymentDate:      legacyPaymentDate(r.Status, r.PaymentDate, due),
	}, true
}

// legacyPaymentDate reconstructs a settlement date for rows marked paid.
// Some legacy rows were flagged paid without recording the date; those are
// treated as settled on the due date itself.
func legacyPaymentDate(status string, paymentDate *string, due time.Time) *time.Time {
	if paymentDate != nil && *paymentDate != "" {
		if t, ok := parseStoreDate(*paymentDate); ok {
			return &t
		}
	}
	if status == "paid" || status == "received" {
		d := due
		return &d
	}
	return nil
}

// ListLegacyObligations reproduces the current-schema query against the
// legacy tables, merging tax obligations with inbound invoices for payables.
func (c *Client) ListLegacyObligations(ctx context.Context, q port.ObligationQuery) ([]domain.Obligation, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListLegacyObligations")
	defer span.End()
	span.SetAttributes(
		attribute.String("company.id", q.CompanyID),
		attribute.String("obligation.kind", string(q.Kind)),
	)

	var out []domain.Obligation

	if q.Kind == domain.KindPayable {
		taxes, err := c.listLegacyTaxObligations(ctx, q)
		if err != nil {
			return nil, err
		}
		inbound, err := c.listLegacyInvoices(ctx, q, "entrada")
		if err != nil {
			return nil, err
		}
		out = append(taxes, inbound...)
	} else {
		outbound, err := c.listLegacyInvoices(ctx, q, "saida")
		if err != nil {
			return nil, err
		}
		out = outbound
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].ID < out[j].ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (c *Client) listLegacyTaxObligations(ctx context.Context, q port.ObligationQuery) ([]domain.Obligation, error) {
	path := "tax_obligations?select=*&company_id=eq." + q.CompanyID
	if q.Start != nil {
		path += "&due_date=gte." + q.Start.Format(domain.DateOnly)
	}
	if q.End != nil {
		path += "&due_date=lte." + q.End.Format(domain.DateOnly)
	}
	if !q.IncludeSettled {
		path += "&status=eq.pending"
	}
	path += "&order=due_date.asc"

	var out []domain.Obligation
	var schemaErr *domain.ErrSchemaUnavailable

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				if errors.As(err, &schemaErr) {
					return nil
				}
				return err
			}
			if body == nil || string(body) == "[]" {
				out = []domain.Obligation{}
				return nil
			}
			var rows []taxObligationRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode tax_obligations: %w", err)
			}
			out = make([]domain.Obligation, 0, len(rows))
			for i := range rows {
				o, ok := rows[i].toObligation()
				if !ok {
					c.metrics.IncrMalformedRecord("legacy")
					c.logger.Warn("supabase: skipping malformed legacy obligation",
						zap.String("table", "tax_obligations"),
						zap.String("id", rows[i].ID),
					)
					continue
				}
				out = append(out, o)
			}
			return nil
		})
	})
	if schemaErr != nil {
		return nil, schemaErr
	}
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/tax_obligations", Err: err}
	}
	return out, nil
}

func (c *Client) listLegacyInvoices(ctx context.Context, q port.ObligationQuery, invoiceType string) ([]domain.Obligation, error) {
	kind := domain.KindPayable
	if invoiceType == "saida" {
		kind = domain.KindReceivable
	}

	path := fmt.Sprintf("invoices?select=*&company_id=eq.%s&invoice_type=eq.%s", q.CompanyID, invoiceType)
	if q.Start != nil {
		path += "&issue_date=gte." + q.Start.Format(domain.DateOnly)
	}
	if q.End != nil {
		path += "&issue_date=lte." + q.End.Format(domain.DateOnly)
	}
	if !q.IncludeSettled {
		path += "&status=eq.pending"
	}
	path += "&order=issue_date.asc"

	var out []domain.Obligation
	var schemaErr *domain.ErrSchemaUnavailable

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				if errors.As(err, &schemaErr) {
					return nil
				}
				return err
			}
			if body == nil || string(body) == "[]" {
				out = []domain.Obligation{}
				return nil
			}
			var rows []invoiceRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode invoices: %w", err)
			}
			out = make([]domain.Obligation, 0, len(rows))
			for i := range rows {
				o, ok := rows[i].toObligation(kind)
				if !ok {
					c.metrics.IncrMalformedRecord("legacy")
					c.logger.Warn("supabase: skipping malformed legacy obligation",
						zap.String("table", "invoices"),
						zap.String("id", rows[i].ID),
					)
					continue
				}
				out = append(out, o)
			}
			return nil
		})
	})
	if schemaErr != nil {
		return nil, schemaErr
	}
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/invoices", Err: err}
	}
	return out, nil
}
