package domain

import (
	"math"
	"time"
)

type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusRefunded  Status = "REFUNDED"
)

// Payment is one-to-one with an order. CommissionCents is computed exactly
// once, at completion, and never changes afterward.
type Payment struct {
	ID               string
	OrderID          string
	AmountCents      int64
	Provider         string
	ProviderFeeCents int64
	CommissionCents  int64
	Status           Status
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CommissionFor is the platform's cut of this payment at the given rate,
// rounded to the nearest cent.
func (p Payment) CommissionFor(rate float64) int64 {
	return int64(math.Round(float64(p.AmountCents) * rate))
}

// RevenueEntry is an append-only ledger record of collected commission.
type RevenueEntry struct {
	ID          string
	PaymentID   string
	AmountCents int64
	RecordedAt  time.Time
}
