package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ismartsell/fulfillment/internal/core"
	orderdomain "github.com/ismartsell/fulfillment/internal/order/domain"
	"github.com/ismartsell/fulfillment/internal/payment/domain"
	"github.com/ismartsell/fulfillment/pkg/outbox"
	"github.com/ismartsell/fulfillment/pkg/tracing"
)

// Service handles payment initiation and completion. Completion is the
// sole trigger for an order's PAID transition and QR token issuance.
type Service struct {
	log            *slog.Logger
	payments       PaymentRepository
	orders         OrderReader
	commissionRate float64
	now            func() time.Time
}

func NewService(log *slog.Logger, payments PaymentRepository, orders OrderReader, commissionRate float64) *Service {
	return &Service{
		log:            log,
		payments:       payments,
		orders:         orders,
		commissionRate: commissionRate,
		now:            time.Now,
	}
}

// Initiate creates a CREATED payment for the order's total. Re-initiating
// an order that already has a payment returns the existing one.
func (s *Service) Initiate(ctx context.Context, orderID, requesterID, provider string) (domain.Payment, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Payment{}, err
	}
	if order.BuyerID != requesterID {
		return domain.Payment{}, core.Unauthorizedf("you can only pay for your own orders")
	}

	existing, err := s.payments.GetByOrder(ctx, orderID)
	if err == nil {
		return existing, nil
	}
	if !core.IsNotFound(err) {
		return domain.Payment{}, err
	}

	now := s.now().UTC()
	p := domain.Payment{
		ID:          uuid.NewString(),
		OrderID:     orderID,
		AmountCents: order.TotalCents,
		Provider:    provider,
		Status:      domain.StatusCreated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return domain.Payment{}, err
	}
	s.log.Info("payment initiated", "payment_id", p.ID, "order_id", orderID, "amount_cents", p.AmountCents)
	return p, nil
}

// Complete processes a provider confirmation: computes the commission,
// records revenue, issues the QR token and marks the order PAID, all in
// one transaction. Replays fail validation on the CREATED status check.
func (s *Service) Complete(ctx context.Context, paymentID string) (domain.Payment, error) {
	p, err := s.payments.Get(ctx, paymentID)
	if err != nil {
		if core.IsNotFound(err) {
			return domain.Payment{}, core.Validationf("payment %s not found", paymentID)
		}
		return domain.Payment{}, err
	}
	if p.Status != domain.StatusCreated {
		return domain.Payment{}, core.Validationf("payment already processed (status: %s)", p.Status)
	}

	order, err := s.orders.Get(ctx, p.OrderID)
	if err != nil {
		if core.IsNotFound(err) {
			return domain.Payment{}, core.Validationf("order %s not found", p.OrderID)
		}
		return domain.Payment{}, err
	}

	now := s.now().UTC()
	p.CommissionCents = p.CommissionFor(s.commissionRate)
	p.Status = domain.StatusCompleted
	p.UpdatedAt = now

	rev := domain.RevenueEntry{
		ID:          uuid.NewString(),
		PaymentID:   p.ID,
		AmountCents: p.CommissionCents,
		RecordedAt:  now,
	}
	qrToken := uuid.NewString()

	payload, err := json.Marshal(orderdomain.OrderPaid{OrderID: order.ID, PaymentID: p.ID})
	if err != nil {
		return domain.Payment{}, fmt.Errorf("marshal OrderPaid: %w", err)
	}
	rec := outbox.Record{
		AggregateType: "order",
		AggregateID:   order.ID,
		Type:          "OrderPaid",
		Payload:       payload,
		Traceparent:   tracing.Traceparent(ctx),
	}

	if err := s.payments.Complete(ctx, p, rev, qrToken, rec); err != nil {
		return domain.Payment{}, err
	}
	s.log.Info("payment completed", "payment_id", p.ID, "order_id", order.ID, "commission_cents", p.CommissionCents)
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Payment, error) {
	return s.payments.Get(ctx, id)
}

func (s *Service) GetByOrder(ctx context.Context, orderID string) (domain.Payment, error) {
	return s.payments.GetByOrder(ctx, orderID)
}
