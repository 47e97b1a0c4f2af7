package domain

// Domain events recorded to the outbox alongside the state change that
// produced them, then relayed to Kafka.

type OrderCreated struct {
	OrderID       string        `json:"order_id"`
	BuyerID       string        `json:"buyer_id"`
	StoreID       string        `json:"store_id"`
	Status        OrderStatus   `json:"status"`
	TotalCents    int64         `json:"total_cents"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Items         []OrderItem   `json:"items"`
}

type OrderCancelled struct {
	OrderID string `json:"order_id"`
	// Expired distinguishes sweep reclamation from a buyer cancellation.
	Expired bool `json:"expired"`
}

type OrderPaid struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
}

type OrderReady struct {
	OrderID string `json:"order_id"`
	StoreID string `json:"store_id"`
}

type OrderDelivered struct {
	OrderID string `json:"order_id"`
	StoreID string `json:"store_id"`
}
