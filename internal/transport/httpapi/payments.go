package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ismartsell/fulfillment/internal/core"
	"github.com/ismartsell/fulfillment/internal/payment/domain"
)

type PaymentService interface {
	Initiate(ctx context.Context, orderID, requesterID, provider string) (domain.Payment, error)
	Complete(ctx context.Context, paymentID string) (domain.Payment, error)
	Get(ctx context.Context, id string) (domain.Payment, error)
}

type initiatePaymentReq struct {
	Provider string `json:"provider"`
}

type paymentResp struct {
	ID              string    `json:"id"`
	OrderID         string    `json:"order_id"`
	AmountCents     int64     `json:"amount_cents"`
	Provider        string    `json:"provider,omitempty"`
	CommissionCents int64     `json:"commission_cents"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

func toPaymentResp(p domain.Payment) paymentResp {
	return paymentResp{
		ID:              p.ID,
		OrderID:         p.OrderID,
		AmountCents:     p.AmountCents,
		Provider:        p.Provider,
		CommissionCents: p.CommissionCents,
		Status:          string(p.Status),
		CreatedAt:       p.CreatedAt,
	}
}

func (h *Handler) initiatePayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "InitiatePayment")
	defer span.End()

	userID, ok := requester(r)
	if !ok {
		respondError(w, core.Unauthorizedf("missing X-User-ID header"))
		return
	}
	var req initiatePaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, core.Validationf("invalid request body"))
		return
	}
	p, err := h.payments.Initiate(ctx, chi.URLParam(r, "orderID"), userID, req.Provider)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, toPaymentResp(p))
}

// completePayment is the webhook-shaped confirmation endpoint. Provider
// notifications are retried at-least-once, so deliveries carrying an event
// id are deduplicated through redis before touching the database; the
// CREATED-status check in the service remains the authoritative guard.
func (h *Handler) completePayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CompletePayment")
	defer span.End()

	paymentID := chi.URLParam(r, "paymentID")

	eventID := r.Header.Get("X-Provider-Event-ID")
	var idemKey string
	if eventID != "" && h.idem != nil {
		idemKey = h.idem.Key("payment-complete", eventID)
		seen, err := h.idem.Seen(ctx, idemKey)
		if err != nil {
			h.log.Error("idempotency check failed", "err", err)
		} else if seen {
			h.log.Info("duplicate provider event skipped", "event_id", eventID)
			respondJSON(w, http.StatusOK, map[string]string{"message": "duplicate event ignored"})
			return
		}
	}

	p, err := h.payments.Complete(ctx, paymentID)
	if err != nil {
		if idemKey != "" {
			_ = h.idem.Release(ctx, idemKey)
		}
		respondError(w, err)
		return
	}
	if h.reg != nil {
		h.reg.PaymentsCompleted.Inc()
	}
	respondJSON(w, http.StatusOK, toPaymentResp(p))
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.payments.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toPaymentResp(p))
}
