package application

import (
	"context"

	orderdomain "github.com/ismartsell/fulfillment/internal/order/domain"
	"github.com/ismartsell/fulfillment/internal/payment/domain"
	"github.com/ismartsell/fulfillment/pkg/outbox"
)

type PaymentRepository interface {
	Create(ctx context.Context, p domain.Payment) error
	Get(ctx context.Context, id string) (domain.Payment, error)
	GetByOrder(ctx context.Context, orderID string) (domain.Payment, error)
	// Complete applies the whole payment-completion mutation as one unit:
	// payment status + commission, the revenue ledger entry, the order's
	// QR token and PAID transition, and the staged event. No reader may
	// observe a completed payment with an unpaid order or vice versa.
	Complete(ctx context.Context, p domain.Payment, rev domain.RevenueEntry, qrToken string, rec outbox.Record) error
}

// OrderReader is the slice of the order store payment processing needs.
type OrderReader interface {
	Get(ctx context.Context, id string) (orderdomain.Order, error)
}
