package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gestorpj/fiscal-engine-go/internal/domain"
	"github.com/gestorpj/fiscal-engine-go/internal/infra/resilience"
	"github.com/gestorpj/fiscal-engine-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Current schema: accounts_payable / accounts_receivable
// ============================================================

func tableFor(kind domain.ObligationKind) string {
	if kind == domain.KindReceivable {
		return "accounts_receivable"
	}
	return "accounts_payable"
}

// accountRow maps the current-schema table columns. The situacao/status
// columns carry the denormalized state pair in the store's Portuguese
// vocabulary; they are write-through only, derived state is always
// recomputed from the dates on read.
type accountRow struct {
	ID               string         `json:"id"`
	CompanyID        string         `json:"company_id"`
	Description      string         `json:"description"`
	CounterpartyName *string        `json:"counterparty_name"`
	Amount           *float64       `json:"amount"`
	NetAmount        *float64       `json:"net_amount"`
	DueDate          string         `json:"due_date"`
	PaymentDate      *string        `json:"payment_date"`
	Situacao         string         `json:"situacao"`
	Status           string         `json:"status"`
	ThirdParty       *thirdPartyRef `json:"third_parties"`
}

type thirdPartyRef struct {
	Name string `json:"name"`
}

func parseStoreDate(s string) (time.Time, bool) {
	if t, err := time.Parse(domain.DateOnly, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// toObligation maps a row into the canonical shape. The second return is
// false for malformed rows (no parseable due date), which are skipped and
// counted by the caller rather than failing the batch.
func (r *accountRow) toObligation(kind domain.ObligationKind) (domain.Obligation, bool) {
	due, ok := parseStoreDate(r.DueDate)
	if !ok {
		return domain.Obligation{}, false
	}

	amount := 0.0
	if r.Amount != nil && *r.Amount != 0 {
		amount = *r.Amount
	} else if r.NetAmount != nil {
		amount = *r.NetAmount
	}

	counterparty := ""
	if r.ThirdParty != nil {
		counterparty = r.ThirdParty.Name
	} else if r.CounterpartyName != nil {
		counterparty = *r.CounterpartyName
	}

	var paid *time.Time
	if r.PaymentDate != nil && *r.PaymentDate != "" {
		if t, ok := parseStoreDate(*r.PaymentDate); ok {
			paid = &t
		}
	}

	return domain.Obligation{
		ID:               r.ID,
		CompanyID:        r.CompanyID,
		Kind:             kind,
		Description:      r.Description,
		CounterpartyName: counterparty,
		Amount:           amount,
		DueDate:          due,
		PaymentDate:      paid,
	}, true
}

// --- Portuguese store vocabulary for the denormalized state columns ---

func situacaoFor(kind domain.ObligationKind, s domain.SettlementState) string {
	settled := s == domain.SettlementSettled
	if kind == domain.KindReceivable {
		if settled {
			return "Recebido"
		}
		return "A Receber"
	}
	if settled {
		return "Pago"
	}
	return "A Pagar"
}

func statusFor(t domain.TimelinessState) string {
	switch t {
	case domain.TimelinessOnTime:
		return "Em Dia"
	case domain.TimelinessLate:
		return "Com Atraso"
	default:
		return "Pendente"
	}
}

// ListObligations queries the current schema. A missing relation is
// returned as *domain.ErrSchemaUnavailable without retrying; every other
// failure goes through the breaker and backoff like any store read.
func (c *Client) ListObligations(ctx context.Context, q port.ObligationQuery) ([]domain.Obligation, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListObligations")
	defer span.End()
	span.SetAttributes(
		attribute.String("company.id", q.CompanyID),
		attribute.String("obligation.kind", string(q.Kind)),
	)

	table := tableFor(q.Kind)
	path := fmt.Sprintf("%s?select=*,third_parties(name)&company_id=eq.%s", table, q.CompanyID)
	if q.Start != nil {
		path += "&due_date=gte." + q.Start.Format(domain.DateOnly)
	}
	if q.End != nil {
		path += "&due_date=lte." + q.End.Format(domain.DateOnly)
	}
	if !q.IncludeSettled {
		path += "&payment_date=is.null"
	}
	path += "&order=due_date.asc"
	if q.Limit > 0 {
		path += fmt.Sprintf("&limit=%d", q.Limit)
	}

	var out []domain.Obligation
	var schemaErr *domain.ErrSchemaUnavailable

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				if errors.As(err, &schemaErr) {
					return nil // typed signal for the resolver, not a transient failure
				}
				return err
			}
			if body == nil || string(body) == "[]" {
				out = []domain.Obligation{}
				return nil
			}

			var rows []accountRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode %s: %w", table, err)
			}

			out = make([]domain.Obligation, 0, len(rows))
			for i := range rows {
				o, ok := rows[i].toObligation(q.Kind)
				if !ok {
					c.metrics.IncrMalformedRecord("primary")
					c.logger.Warn("supabase: skipping malformed obligation",
						zap.String("table", table),
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
		return nil, &domain.ErrExternalService{Service: "supabase/" + table, Err: err}
	}
	return out, nil
}

// GetObligation fetches a single row by primary id.
func (c *Client) GetObligation(ctx context.Context, kind domain.ObligationKind, id string) (*domain.Obligation, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetObligation")
	defer span.End()

	table := tableFor(kind)
	path := fmt.Sprintf("%s?select=*,third_parties(name)&id=eq.%s&limit=1", table, id)

	var result *domain.Obligation
	var terminal error // not-found / malformed: no retry, no breaker failure

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				terminal = &domain.ErrNotFound{Resource: "obligation", ID: id}
				return nil
			}

			var rows []accountRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode %s: %w", table, err)
			}
			if len(rows) == 0 {
				terminal = &domain.ErrNotFound{Resource: "obligation", ID: id}
				return nil
			}

			o, ok := rows[0].toObligation(kind)
			if !ok {
				terminal = &domain.ErrMalformedRecord{ID: id, Field: "due_date"}
				return nil
			}
			result = &o
			return nil
		})
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/" + table, Err: err}
	}
	if terminal != nil {
		return nil, terminal
	}
	return result, nil
}

// CreateObligation inserts a row with the derived state pair already
// denormalized, so stored and derived state agree from the first read.
func (c *Client) CreateObligation(ctx context.Context, o *domain.Obligation) (*domain.Obligation, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateObligation")
	defer span.End()

	table := tableFor(o.Kind)
	row := map[string]any{
		"id":                o.ID,
		"company_id":        o.CompanyID,
		"description":       o.Description,
		"counterparty_name": o.CounterpartyName,
		"amount":            o.Amount,
		"due_date":          o.DueDate.Format(domain.DateOnly),
		"situacao":          situacaoFor(o.Kind, o.Settlement),
		"status":            statusFor(o.Timeliness),
	}
	if o.PaymentDate != nil {
		row["payment_date"] = o.PaymentDate.Format(domain.DateOnly)
	}

	body, err := c.doPost(ctx, table, row)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/" + table, Err: err}
	}

	var rows []accountRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode %s insert: %w", table, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no result from %s insert", table)
	}
	created, ok := rows[0].toObligation(o.Kind)
	if !ok {
		return nil, &domain.ErrMalformedRecord{ID: rows[0].ID, Field: "due_date"}
	}
	created.Settlement = o.Settlement
	created.Timeliness = o.Timeliness
	return &created, nil
}

// SetPaymentDate records settlement. It is written exactly once per
// obligation in normal operation; concurrent settlement is last-writer-wins
// by primary id.
func (c *Client) SetPaymentDate(ctx context.Context, kind domain.ObligationKind, id string, paymentDate time.Time) error {
	ctx, span := tracer.Start(ctx, "Supabase.SetPaymentDate")
	defer span.End()

	table := tableFor(kind)
	err := c.doPatch(ctx, fmt.Sprintf("%s?id=eq.%s", table, id), map[string]any{
		"payment_date": paymentDate.Format(domain.DateOnly),
		"updated_at":   time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/" + table, Err: err}
	}
	return nil
}

// DeleteObligation removes a row by primary id.
func (c *Client) DeleteObligation(ctx context.Context, kind domain.ObligationKind, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteObligation")
	defer span.End()

	table := tableFor(kind)
	if err := c.doDelete(ctx, fmt.Sprintf("%s?id=eq.%s", table, id)); err != nil {
		return &domain.ErrExternalService{Service: "supabase/" + table, Err: err}
	}
	return nil
}

// WriteDerivedState persists the denormalized situacao/status pair.
func (c *Client) WriteDerivedState(ctx context.Context, kind domain.ObligationKind, id string, settlement domain.SettlementState, timeliness domain.TimelinessState) error {
	ctx, span := tracer.Start(ctx, "Supabase.WriteDerivedState")
	defer span.End()

	table := tableFor(kind)
	err := c.doPatch(ctx, fmt.Sprintf("%s?id=eq.%s", table, id), map[string]any{
		"situacao": situacaoFor(kind, settlement),
		"status":   statusFor(timeliness),
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/" + table, Err: err}
	}
	return nil
}
