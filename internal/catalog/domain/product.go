package domain

import "time"

// Product belongs to exactly one store. Stock is mutated only through the
// catalog service's Reserve/Restore operations.
type Product struct {
	ID          string
	StoreID     string
	Name        string
	SKU         string
	Description string
	PriceCents  int64
	Stock       int
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (p Product) Available() bool {
	return p.Active && p.Stock > 0
}

type Store struct {
	ID        string
	SellerID  string
	Name      string
	Active    bool
	CreatedAt time.Time
}
