package domain_test

import (
	"testing"
	"time"

	"github.com/gestorpj/fiscal-engine-go/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

func TestDeriveState(t *testing.T) {
	today := date(2025, 6, 15)

	tests := []struct {
		name        string
		dueDate     time.Time
		paymentDate *time.Time
		settlement  domain.SettlementState
		timeliness  domain.TimelinessState
	}{
		{"paid before due", date(2025, 6, 10), datePtr(2025, 6, 5), domain.SettlementSettled, domain.TimelinessOnTime},
		{"paid on due date", date(2025, 6, 10), datePtr(2025, 6, 10), domain.SettlementSettled, domain.TimelinessOnTime},
		{"paid after due", date(2025, 6, 10), datePtr(2025, 6, 11), domain.SettlementSettled, domain.TimelinessLate},
		{"unpaid past due", date(2025, 6, 14), nil, domain.SettlementUnsettled, domain.TimelinessLate},
		{"unpaid due today", date(2025, 6, 15), nil, domain.SettlementUnsettled, domain.TimelinessPending},
		{"unpaid due tomorrow", date(2025, 6, 16), nil, domain.SettlementUnsettled, domain.TimelinessPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settlement, timeliness := domain.DeriveState(tt.dueDate, tt.paymentDate, today)
			if settlement != tt.settlement {
				t.Errorf("expected settlement %s, got %s", tt.settlement, settlement)
			}
			if timeliness != tt.timeliness {
				t.Errorf("expected timeliness %s, got %s", tt.timeliness, timeliness)
			}
		})
	}
}

func TestDeriveState_IgnoresTimeOfDay(t *testing.T) {
	// Paid at 23:59 on the due date is still on time.
	due := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	paid := time.Date(2025, 6, 10, 23, 59, 59, 0, time.UTC)
	today := date(2025, 6, 15)

	_, timeliness := domain.DeriveState(due, &paid, today)
	if timeliness != domain.TimelinessOnTime {
		t.Errorf("expected on_time, got %s", timeliness)
	}
}

func mkObligation(id string, due time.Time, paid *time.Time, today time.Time) domain.Obligation {
	o := domain.Obligation{ID: id, Kind: domain.KindPayable, DueDate: due, PaymentDate: paid}
	o.Refresh(today)
	return o
}

func TestRankByUrgency_TierOrder(t *testing.T) {
	today := date(2025, 6, 15)

	pending := mkObligation("d", date(2025, 6, 20), nil, today)
	settledOnTime := mkObligation("c", date(2025, 6, 10), datePtr(2025, 6, 9), today)
	settledLate := mkObligation("b", date(2025, 6, 5), datePtr(2025, 6, 8), today)
	overdueOpen := mkObligation("a", date(2025, 6, 1), nil, today)

	obs := []domain.Obligation{pending, settledOnTime, settledLate, overdueOpen}
	domain.RankByUrgency(obs)

	want := []string{"a", "b", "c", "d"}
	for i, id := range want {
		if obs[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, obs[i].ID)
		}
	}
}

func TestRankByUrgency_Deterministic(t *testing.T) {
	today := date(2025, 6, 15)

	// Same tier, same due date: the id breaks the tie, so any input
	// permutation sorts to the same sequence.
	a := mkObligation("id-1", date(2025, 6, 1), nil, today)
	b := mkObligation("id-2", date(2025, 6, 1), nil, today)
	c := mkObligation("id-3", date(2025, 6, 1), nil, today)

	forward := []domain.Obligation{a, b, c}
	reversed := []domain.Obligation{c, b, a}
	domain.RankByUrgency(forward)
	domain.RankByUrgency(reversed)

	for i := range forward {
		if forward[i].ID != reversed[i].ID {
			t.Fatalf("position %d: %s vs %s", i, forward[i].ID, reversed[i].ID)
		}
	}
}

func TestRankByUrgency_DueDateWithinTier(t *testing.T) {
	today := date(2025, 6, 15)

	later := mkObligation("x", date(2025, 6, 10), nil, today)
	earlier := mkObligation("y", date(2025, 6, 1), nil, today)

	obs := []domain.Obligation{later, earlier}
	domain.RankByUrgency(obs)

	if obs[0].ID != "y" {
		t.Errorf("expected earlier due date first, got %s", obs[0].ID)
	}
}

func TestUpcomingWindow(t *testing.T) {
	today := date(2025, 6, 15)

	obs := []domain.Obligation{
		mkObligation("past", date(2025, 6, 1), nil, today),
		mkObligation("today", date(2025, 6, 15), nil, today),
		mkObligation("soon", date(2025, 6, 18), nil, today),
		mkObligation("far", date(2025, 7, 30), nil, today),
	}

	window := domain.UpcomingWindow(obs, today, 10)
	if len(window) != 3 {
		t.Fatalf("expected 3 obligations, got %d", len(window))
	}
	for _, o := range window {
		if o.ID == "past" {
			t.Error("obligation due before start should be excluded")
		}
	}
}

func TestUpcomingWindow_Limit(t *testing.T) {
	today := date(2025, 6, 15)

	obs := []domain.Obligation{
		mkObligation("1", date(2025, 6, 16), nil, today),
		mkObligation("2", date(2025, 6, 17), nil, today),
		mkObligation("3", date(2025, 6, 18), nil, today),
	}

	window := domain.UpcomingWindow(obs, today, 2)
	if len(window) != 2 {
		t.Fatalf("expected 2 obligations, got %d", len(window))
	}
	if window[0].ID != "1" || window[1].ID != "2" {
		t.Errorf("expected earliest two, got %s, %s", window[0].ID, window[1].ID)
	}
}

func TestSummarizeTiers(t *testing.T) {
	today := date(2025, 6, 15)

	obs := []domain.Obligation{
		mkObligation("overdue-1", date(2025, 6, 1), nil, today),
		mkObligation("overdue-2", date(2025, 6, 5), nil, today),
		mkObligation("late", date(2025, 6, 5), datePtr(2025, 6, 8), today),
		mkObligation("ontime", date(2025, 6, 10), datePtr(2025, 6, 10), today),
		mkObligation("pending", date(2025, 6, 20), nil, today),
	}

	s := domain.SummarizeTiers(obs)
	if s.Total != 5 {
		t.Errorf("expected total 5, got %d", s.Total)
	}
	if s.OverdueOpen != 2 {
		t.Errorf("expected 2 overdue open, got %d", s.OverdueOpen)
	}
	if s.SettledLate != 1 {
		t.Errorf("expected 1 settled late, got %d", s.SettledLate)
	}
	if s.SettledOnTime != 1 {
		t.Errorf("expected 1 settled on time, got %d", s.SettledOnTime)
	}
	if s.Pending != 1 {
		t.Errorf("expected 1 pending, got %d", s.Pending)
	}
}

func TestMonthOf(t *testing.T) {
	got := domain.MonthOf(time.Date(2025, 6, 27, 14, 30, 0, 0, time.UTC))
	want := date(2025, 6, 1)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
