package domain

import "time"

type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusReserved  OrderStatus = "RESERVED"
	StatusPaid      OrderStatus = "PAID"
	StatusReady     OrderStatus = "READY"
	StatusDelivered OrderStatus = "DELIVERED"
	StatusCancelled OrderStatus = "CANCELLED"
)

type PaymentMethod string

const (
	PaymentOnline PaymentMethod = "ONLINE"
	PaymentCash   PaymentMethod = "CASH"
	PaymentNone   PaymentMethod = "NONE"
)

// Order is the aggregate root. TotalCents == SubtotalCents + ShippingCents
// from creation onward. ReservedUntil is set iff status is RESERVED;
// QRToken is set exactly once, at payment completion.
type Order struct {
	ID            string
	BuyerID       string
	StoreID       string
	Status        OrderStatus
	SubtotalCents int64
	ShippingCents int64
	TotalCents    int64
	PaymentMethod PaymentMethod
	QRToken       string
	ReservedUntil *time.Time
	Items         []OrderItem
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderItem snapshots the unit price at order time; later product price
// changes do not affect it.
type OrderItem struct {
	ProductID       string
	Quantity        int
	UnitPriceCents  int64
	TotalPriceCents int64
}

func NewOrderItem(productID string, quantity int, unitPriceCents int64) OrderItem {
	return OrderItem{
		ProductID:       productID,
		Quantity:        quantity,
		UnitPriceCents:  unitPriceCents,
		TotalPriceCents: unitPriceCents * int64(quantity),
	}
}

// NewOrder assembles an order from already-reserved items. Orders paying
// later (method NONE) start RESERVED with a reservation deadline; orders
// with a payment method attached start PENDING until payment completes.
func NewOrder(id, buyerID, storeID string, items []OrderItem, method PaymentMethod, shippingCents int64, now time.Time, reservation time.Duration) Order {
	var subtotal int64
	for _, it := range items {
		subtotal += it.TotalPriceCents
	}
	o := Order{
		ID:            id,
		BuyerID:       buyerID,
		StoreID:       storeID,
		Status:        StatusPending,
		SubtotalCents: subtotal,
		ShippingCents: shippingCents,
		TotalCents:    subtotal + shippingCents,
		PaymentMethod: method,
		Items:         items,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if method == PaymentNone {
		until := now.Add(reservation)
		o.Status = StatusReserved
		o.ReservedUntil = &until
	}
	return o
}

// CanCancel reports whether the order may still be cancelled by its buyer
// or by the expiry sweep. CANCELLED and DELIVERED are terminal.
func (o Order) CanCancel() bool {
	switch o.Status {
	case StatusPending, StatusReserved, StatusPaid:
		return true
	}
	return false
}

func (o Order) CanMarkReady() bool {
	return o.Status == StatusPaid
}

func (o Order) CanDeliver() bool {
	return o.Status == StatusPaid || o.Status == StatusReady
}

// Expired reports whether the reservation window has elapsed. Only
// RESERVED orders carry a deadline.
func (o Order) Expired(now time.Time) bool {
	return o.Status == StatusReserved && o.ReservedUntil != nil && now.After(*o.ReservedUntil)
}
