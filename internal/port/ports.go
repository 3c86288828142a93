// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/gestorpj/fiscal-engine-go/internal/domain"
)

// ObligationQuery carries the filters shared by every obligation read.
// Nil Start/End means the caller did not constrain that side of the range.
type ObligationQuery struct {
	CompanyID      string
	Kind           domain.ObligationKind
	Start          *time.Time
	End            *time.Time
	IncludeSettled bool
	Limit          int
}

// ObligationStore is the current-schema store (accounts_payable /
// accounts_receivable). Reads return *domain.ErrSchemaUnavailable when the
// relation does not exist in the connected database, which is the explicit
// signal for the normalizer to query the legacy source instead.
type ObligationStore interface {
	ListObligations(ctx context.Context, q ObligationQuery) ([]domain.Obligation, error)
	GetObligation(ctx context.Context, kind domain.ObligationKind, id string) (*domain.Obligation, error)
	CreateObligation(ctx context.Context, o *domain.Obligation) (*domain.Obligation, error)
	SetPaymentDate(ctx context.Context, kind domain.ObligationKind, id string, paymentDate time.Time) error
	DeleteObligation(ctx context.Context, kind domain.ObligationKind, id string) error

	// WriteDerivedState persists the denormalized state pair so stored and
	// derived state stay consistent for cheap downstream filtering.
	WriteDerivedState(ctx context.Context, kind domain.ObligationKind, id string, settlement domain.SettlementState, timeliness domain.TimelinessState) error
}

// LegacyObligationSource reads the legacy representation: tax obligations
// plus one-directional invoice records, mapped into the canonical shape.
type LegacyObligationSource interface {
	ListLegacyObligations(ctx context.Context, q ObligationQuery) ([]domain.Obligation, error)
}

// PeriodStore persists per-company monthly income-statement buckets.
// GetPeriod returns *domain.ErrNotFound when no bucket exists for the month.
type PeriodStore interface {
	GetPeriod(ctx context.Context, companyID string, month time.Time) (*domain.PeriodBucket, error)
	CreatePeriod(ctx context.Context, bucket *domain.PeriodBucket) (*domain.PeriodBucket, error)
}

// Cache provides generic caching with TTL. DeletePrefix backs the explicit
// invalidation of aggregation results when a company's obligations change.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	DeletePrefix(prefix string)
}
