// Package domain holds the core types of the fiscal engine: obligations
// (payables/receivables), period buckets and tax regime results.
package domain

import (
	"sort"
	"time"
)

// DateOnly is the wire format for calendar dates (store columns and API).
const DateOnly = "2006-01-02"

// ObligationKind distinguishes money owed from money due.
// The two are structurally identical; only the vocabulary inverts.
type ObligationKind string

const (
	KindPayable    ObligationKind = "payable"
	KindReceivable ObligationKind = "receivable"
)

// Valid reports whether the kind is one of the two known values.
func (k ObligationKind) Valid() bool {
	return k == KindPayable || k == KindReceivable
}

// SettlementState says whether an obligation has been paid/received.
type SettlementState string

const (
	SettlementUnsettled SettlementState = "unsettled"
	SettlementSettled   SettlementState = "settled"
)

// TimelinessState says whether settlement happened on time, is overdue,
// or has not come due yet.
type TimelinessState string

const (
	TimelinessPending TimelinessState = "pending"
	TimelinessOnTime  TimelinessState = "on_time"
	TimelinessLate    TimelinessState = "late"
)

// Obligation is the canonical shape every stored record normalizes into,
// regardless of which schema it came from.
type Obligation struct {
	ID               string          `json:"id"`
	CompanyID        string          `json:"company_id"`
	Kind             ObligationKind  `json:"kind"`
	Description      string          `json:"description"`
	CounterpartyName string          `json:"counterparty_name"`
	Amount           float64         `json:"amount"`
	DueDate          time.Time       `json:"due_date"`
	PaymentDate      *time.Time      `json:"payment_date,omitempty"`
	Settlement       SettlementState `json:"settlement_state"`
	Timeliness       TimelinessState `json:"timeliness_state"`
}

// Settled reports whether a payment date has been recorded.
func (o *Obligation) Settled() bool { return o.PaymentDate != nil }

// truncateToDay drops the time-of-day component so comparisons are
// calendar-day comparisons.
func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DeriveState computes the two-axis life-cycle state from the dates alone.
// Boundaries are inclusive: payment on the due date is on time, and an
// unsettled obligation due today is still pending.
//
// The timeliness of an unsettled obligation depends on today and must be
// recomputed on every read, never cached across calendar days.
func DeriveState(dueDate time.Time, paymentDate *time.Time, today time.Time) (SettlementState, TimelinessState) {
	due := truncateToDay(dueDate)
	now := truncateToDay(today)

	if paymentDate != nil {
		paid := truncateToDay(*paymentDate)
		if paid.After(due) {
			return SettlementSettled, TimelinessLate
		}
		return SettlementSettled, TimelinessOnTime
	}

	if due.Before(now) {
		return SettlementUnsettled, TimelinessLate
	}
	return SettlementUnsettled, TimelinessPending
}

// Refresh recomputes and stores the derived state pair on the obligation.
func (o *Obligation) Refresh(today time.Time) {
	o.Settlement, o.Timeliness = DeriveState(o.DueDate, o.PaymentDate, today)
}

// RankTier maps the state pair to an urgency tier; lower shows first.
//
//	0: unsettled and overdue (critical)
//	1: settled late
//	2: settled on time
//	3: unsettled, not yet due
func (o *Obligation) RankTier() int {
	switch {
	case o.Settlement == SettlementUnsettled && o.Timeliness == TimelinessLate:
		return 0
	case o.Settlement == SettlementSettled && o.Timeliness == TimelinessLate:
		return 1
	case o.Settlement == SettlementSettled && o.Timeliness == TimelinessOnTime:
		return 2
	default:
		return 3
	}
}

// RankByUrgency orders obligations in place: tier, then due date ascending,
// then id. The id tiebreaker makes the order total, so sorting the same
// multiset always yields the same sequence no matter the input order.
func RankByUrgency(obs []Obligation) {
	sort.Slice(obs, func(i, j int) bool {
		a, b := &obs[i], &obs[j]
		if at, bt := a.RankTier(), b.RankTier(); at != bt {
			return at < bt
		}
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		return a.ID < b.ID
	})
}

// UpcomingWindow returns up to limit obligations due on or after start,
// ranked by urgency. There is no upper date bound; this backs the
// "next N" dashboard lists.
func UpcomingWindow(obs []Obligation, start time.Time, limit int) []Obligation {
	from := truncateToDay(start)
	window := make([]Obligation, 0, limit)
	for _, o := range obs {
		if truncateToDay(o.DueDate).Before(from) {
			continue
		}
		window = append(window, o)
	}
	RankByUrgency(window)
	if limit > 0 && len(window) > limit {
		window = window[:limit]
	}
	return window
}

// TierSummary counts obligations per urgency tier for table headers.
type TierSummary struct {
	Total         int `json:"total"`
	OverdueOpen   int `json:"overdue_open"`
	SettledLate   int `json:"settled_late"`
	SettledOnTime int `json:"settled_on_time"`
	Pending       int `json:"pending"`
}

// SummarizeTiers tallies the ranking tiers over a set of obligations.
func SummarizeTiers(obs []Obligation) TierSummary {
	s := TierSummary{Total: len(obs)}
	for i := range obs {
		switch obs[i].RankTier() {
		case 0:
			s.OverdueOpen++
		case 1:
			s.SettledLate++
		case 2:
			s.SettledOnTime++
		default:
			s.Pending++
		}
	}
	return s
}
