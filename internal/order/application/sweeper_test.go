package application

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ismartsell/fulfillment/internal/core"
	"github.com/ismartsell/fulfillment/internal/order/domain"
)

func TestSweepReclaimsExpiredReservation(t *testing.T) {
	ledger := newMemLedger(testProduct("p1", "store1", 100, 10))
	repo := newMemOrders()
	svc := newTestService(ledger, repo)

	order, err := svc.CreateOrder(context.Background(), "buyer1", "store1",
		[]OrderLine{{ProductID: "p1", Quantity: 4}}, domain.PaymentNone)
	require.NoError(t, err)
	require.Equal(t, 6, ledger.stock("p1"))

	sweeper := NewSweeper(slog.Default(), svc, time.Minute, nil)

	// Before the deadline nothing is touched.
	sweeper.now = func() time.Time { return testTime.Add(10 * time.Minute) }
	cancelled, errs := sweeper.Sweep(context.Background())
	assert.Zero(t, cancelled)
	assert.Empty(t, errs)
	assert.Equal(t, 6, ledger.stock("p1"))

	// Past the deadline the order is cancelled and stock restored.
	sweeper.now = func() time.Time { return testTime.Add(31 * time.Minute) }
	cancelled, errs = sweeper.Sweep(context.Background())
	assert.Equal(t, 1, cancelled)
	assert.Empty(t, errs)
	assert.Equal(t, 10, ledger.stock("p1"))

	got, _ := repo.Get(context.Background(), order.ID)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.Nil(t, got.ReservedUntil)

	// A second pass finds nothing; stock stays put.
	cancelled, errs = sweeper.Sweep(context.Background())
	assert.Zero(t, cancelled)
	assert.Empty(t, errs)
	assert.Equal(t, 10, ledger.stock("p1"))
}

func TestSweepSkipsPaidOrders(t *testing.T) {
	ledger := newMemLedger(testProduct("p1", "store1", 100, 10))
	repo := newMemOrders()
	svc := newTestService(ledger, repo)

	order, err := svc.CreateOrder(context.Background(), "buyer1", "store1",
		[]OrderLine{{ProductID: "p1", Quantity: 1}}, domain.PaymentNone)
	require.NoError(t, err)
	repo.setStatus(order.ID, domain.StatusPaid)

	sweeper := NewSweeper(slog.Default(), svc, time.Minute, nil)
	sweeper.now = func() time.Time { return testTime.Add(time.Hour) }

	cancelled, errs := sweeper.Sweep(context.Background())
	assert.Zero(t, cancelled)
	assert.Empty(t, errs)

	got, _ := repo.Get(context.Background(), order.ID)
	assert.Equal(t, domain.StatusPaid, got.Status)
	assert.Equal(t, 9, ledger.stock("p1"))
}

func TestSweepIsolatesPerOrderFailures(t *testing.T) {
	ledger := newMemLedger(
		testProduct("p1", "store1", 100, 10),
		testProduct("p2", "store1", 100, 10),
	)
	repo := newMemOrders()
	svc := newTestService(ledger, repo)

	bad, err := svc.CreateOrder(context.Background(), "buyer1", "store1",
		[]OrderLine{{ProductID: "p1", Quantity: 1}}, domain.PaymentNone)
	require.NoError(t, err)
	good, err := svc.CreateOrder(context.Background(), "buyer2", "store1",
		[]OrderLine{{ProductID: "p2", Quantity: 2}}, domain.PaymentNone)
	require.NoError(t, err)

	ledger.restoreErrs["p1"] = core.NotFoundf("product p1 not found")

	sweeper := NewSweeper(slog.Default(), svc, time.Minute, nil)
	sweeper.now = func() time.Time { return testTime.Add(time.Hour) }

	cancelled, errs := sweeper.Sweep(context.Background())
	assert.Equal(t, 1, cancelled)
	assert.Len(t, errs, 1)

	// The failing restore did not block the other order.
	gotGood, _ := repo.Get(context.Background(), good.ID)
	assert.Equal(t, domain.StatusCancelled, gotGood.Status)
	assert.Equal(t, 10, ledger.stock("p2"))

	// The failing order still lost its reservation status.
	gotBad, _ := repo.Get(context.Background(), bad.ID)
	assert.Equal(t, domain.StatusCancelled, gotBad.Status)
}
