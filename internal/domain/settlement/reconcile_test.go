package settlement

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/mandi/internal/domain/models"
)

var saleDay = time.Date(2026, 1, 22, 0, 0, 0, 0, time.UTC)

func singleSplitLot(payment models.PaymentStatus, status models.SaleStatus) models.Lot {
	return models.Lot{
		ID:                  "lot-1",
		FarmerName:          "Ramesh",
		Crop:                "onion",
		Quantity:            500,
		OfficialQty:         500,
		Status:              status,
		FarmerPaymentStatus: payment,
		Splits: []models.Split{
			{ID: "s1", Qty: 500, Rate: 40, Amount: 20000, Date: saleDay},
		},
		CreatedAt: saleDay,
	}
}

func TestReconcile_FullySoldPaid(t *testing.T) {
	inv := Reconcile(singleSplitLot(models.PaymentPaid, ""), "", DefaultRates())

	assert.Equal(t, models.UnitKg, inv.Unit)
	assert.InDelta(t, 20000, inv.BaseAmount, 1e-9)
	assert.InDelta(t, 800, inv.Commission, 1e-9)
	assert.InDelta(t, 19200, inv.FinalAmount, 1e-9)
	assert.Equal(t, models.StatusSold, inv.SaleStatus)
	assert.False(t, inv.PaymentPending)
	assert.Equal(t, DisplayFull, inv.Status)
	assert.InDelta(t, 40, inv.AverageRate, 1e-9)
	assert.InDelta(t, 0, inv.AwaitingQuantity, 1e-9)
}

func TestReconcile_FullySoldPaymentPending(t *testing.T) {
	inv := Reconcile(singleSplitLot(models.PaymentPending, models.StatusSold), "", DefaultRates())

	assert.Equal(t, models.StatusSold, inv.SaleStatus)
	assert.True(t, inv.PaymentPending)
	assert.Equal(t, DisplayPaymentPending, inv.Status)
	assert.InDelta(t, 19200, inv.FinalAmount, 1e-9)
}

func TestReconcile_ParentPartial(t *testing.T) {
	lot := models.Lot{
		ID:                   "lot-2",
		Quantity:             500,
		OfficialQty:          500,
		WeightConfirmed:      true,
		IsParent:             true,
		AggregatedSoldQty:    300,
		AwaitingQty:          200,
		AggregatedSaleAmount: 12000,
	}

	inv := Reconcile(lot, "Walk-in farmer", DefaultRates())

	assert.Equal(t, models.StatusPartial, inv.SaleStatus)
	assert.Equal(t, DisplayPartial, inv.Status)
	assert.False(t, inv.PaymentPending)
	assert.InDelta(t, 200, inv.AwaitingQuantity, 1e-9)
	assert.InDelta(t, 40, inv.AverageRate, 1e-9)
	assert.Equal(t, "Walk-in farmer", inv.FarmerName)
}

func TestReconcile_ParentDerivesMissingAwaiting(t *testing.T) {
	lot := models.Lot{
		Quantity:             500,
		OfficialQty:          500,
		IsParent:             true,
		AggregatedSoldQty:    300,
		AggregatedSaleAmount: 12000,
	}

	inv := Reconcile(lot, "", DefaultRates())

	assert.InDelta(t, 200, inv.AwaitingQuantity, 1e-9)
	assert.Equal(t, models.StatusPartial, inv.SaleStatus)
}

func TestReconcile_ZeroSaleDefaults(t *testing.T) {
	lot := models.Lot{ID: "lot-3", Carat: 40, Status: models.StatusPending, CreatedAt: saleDay}

	inv := Reconcile(lot, "", DefaultRates())

	assert.Equal(t, models.UnitNag, inv.Unit)
	assert.Zero(t, inv.Commission)
	assert.Zero(t, inv.FinalAmount)
	assert.Zero(t, inv.AverageRate)
	assert.Equal(t, models.StatusPending, inv.SaleStatus)
	assert.Equal(t, DisplayPending, inv.Status)
	assert.InDelta(t, 40, inv.AwaitingQuantity, 1e-9)
	assert.NotNil(t, inv.Splits)
	assert.Empty(t, inv.Splits)
}

func TestReconcile_StandaloneSynthesizesSplit(t *testing.T) {
	soldAt := saleDay.Add(3 * time.Hour)
	lot := models.Lot{
		ID:                  "lot-4",
		Carat:               20,
		OfficialCarat:       18,
		Status:              models.StatusCompleted,
		Rate:                250,
		SaleAmount:          4500,
		TraderID:            "tr-9",
		FarmerPaymentStatus: models.PaymentPaid,
		SoldAt:              &soldAt,
	}

	inv := Reconcile(lot, "", DefaultRates())

	require.Len(t, inv.Splits, 1)
	assert.InDelta(t, 18, inv.Splits[0].Nag, 1e-9)
	assert.Zero(t, inv.Splits[0].Qty)
	assert.Equal(t, "tr-9", inv.Splits[0].TraderID)
	assert.InDelta(t, 4500, inv.Splits[0].Amount, 1e-9)
	assert.Equal(t, soldAt, inv.Date)
	assert.InDelta(t, 18, inv.SoldQuantity, 1e-9)
	assert.InDelta(t, 250, inv.AverageRate, 1e-9)
	assert.Equal(t, DisplayFull, inv.Status)
}

func TestReconcile_StandaloneOfficialFallsBackToDeclared(t *testing.T) {
	lot := models.Lot{Quantity: 120, Status: models.StatusSold, SaleAmount: 3600, FarmerPaymentStatus: models.PaymentPaid}

	inv := Reconcile(lot, "", DefaultRates())

	assert.InDelta(t, 120, inv.SoldQuantity, 1e-9)
	assert.InDelta(t, 30, inv.AverageRate, 1e-9)
}

func TestReconcile_UpstreamDisplayStatusWins(t *testing.T) {
	lot := models.Lot{
		Quantity:      200,
		IsParent:      true,
		DisplayStatus: models.StatusWeightPending,
	}

	inv := Reconcile(lot, "", DefaultRates())

	assert.Equal(t, models.StatusWeightPending, inv.SaleStatus)
	assert.Equal(t, DisplayWeightPending, inv.Status)
}

func TestReconcile_CommissionPriority(t *testing.T) {
	t.Run("explicit rate on the record", func(t *testing.T) {
		lot := singleSplitLot(models.PaymentPaid, "")
		lot.FarmerCommissionRate = 0.05
		inv := Reconcile(lot, "", DefaultRates())
		assert.InDelta(t, 0.05, inv.CommissionRate, 1e-12)
		assert.InDelta(t, 1000, inv.Commission, 1e-9)
	})

	t.Run("configured platform rate", func(t *testing.T) {
		inv := Reconcile(singleSplitLot(models.PaymentPaid, ""), "", Rates{Farmer: 0.02, Trader: 0.09})
		assert.InDelta(t, 400, inv.Commission, 1e-9)
	})

	t.Run("stored standalone amount wins over rate", func(t *testing.T) {
		lot := singleSplitLot(models.PaymentPaid, "")
		lot.FarmerCommission = 600
		inv := Reconcile(lot, "", DefaultRates())
		assert.InDelta(t, 600, inv.Commission, 1e-9)
		assert.InDelta(t, 19400, inv.FinalAmount, 1e-9)
	})

	t.Run("parent aggregate amount back-derives the rate", func(t *testing.T) {
		lot := models.Lot{
			Quantity:                   100,
			OfficialQty:                100,
			IsParent:                   true,
			AggregatedSoldQty:          100,
			AggregatedSaleAmount:       10000,
			AggregatedFarmerCommission: 300,
			AggregatedPaymentStatus:    models.PaymentPaid,
		}
		inv := Reconcile(lot, "", DefaultRates())
		assert.InDelta(t, 300, inv.Commission, 1e-9)
		assert.InDelta(t, 0.03, inv.CommissionRate, 1e-12)
		assert.Equal(t, DisplayFull, inv.Status)
	})
}

func TestReconcile_NetClampedAtZero(t *testing.T) {
	lot := singleSplitLot(models.PaymentPaid, "")
	lot.FarmerCommission = 25000

	inv := Reconcile(lot, "", DefaultRates())

	assert.Zero(t, inv.FinalAmount)
}

func TestReconcile_MixedUnitsPreferKg(t *testing.T) {
	lot := models.Lot{Quantity: 100, Carat: 7, OfficialQty: 100, OfficialCarat: 7}

	inv := Reconcile(lot, "", DefaultRates())

	assert.Equal(t, models.UnitKg, inv.Unit)
	assert.InDelta(t, 100, inv.TotalQuantity, 1e-9)
	assert.True(t, inv.Sold().IsWeight())
}

func TestReconcile_DoesNotMutateAndIsIdempotent(t *testing.T) {
	lot := singleSplitLot(models.PaymentPending, models.StatusSold)
	before, err := json.Marshal(lot)
	require.NoError(t, err)

	first := Reconcile(lot, "x", DefaultRates())
	first.Splits[0].Amount = 1
	second := Reconcile(lot, "x", DefaultRates())
	third := Reconcile(lot, "x", DefaultRates())

	after, err := json.Marshal(lot)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))

	a, err := json.Marshal(second)
	require.NoError(t, err)
	b, err := json.Marshal(third)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		name     string
		sold     float64
		awaiting float64
		want     models.SaleStatus
	}{
		{"nothing sold", 0, 500, models.StatusPending},
		{"partly sold", 300, 200, models.StatusPartial},
		{"sold out", 500, 0, models.StatusSold},
		{"float drift within tolerance", 499.995, 0.005, models.StatusSold},
		{"just above tolerance", 499.98, 0.02, models.StatusPartial},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveStatus(tc.sold, tc.awaiting))
		})
	}
}
