package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuantity(t *testing.T) {
	q, err := ParseQuantity(12.5, 0)
	require.NoError(t, err)
	assert.Equal(t, Weight(12.5), q)

	q, err = ParseQuantity(0, 8)
	require.NoError(t, err)
	assert.Equal(t, Count(8), q)
	assert.False(t, q.IsWeight())

	_, err = ParseQuantity(3, 4)
	assert.ErrorIs(t, err, ErrMixedUnits)

	_, err = ParseQuantity(0, 0)
	assert.ErrorIs(t, err, ErrNoQuantity)
}

func TestQuantity_Fields(t *testing.T) {
	kg, nag := Weight(40).Fields()
	assert.Equal(t, 40.0, kg)
	assert.Zero(t, nag)

	kg, nag = Count(6).Fields()
	assert.Zero(t, kg)
	assert.Equal(t, 6.0, nag)

	assert.Equal(t, UnitKg, Quantity{}.Unit())
	assert.Equal(t, "6 nag", Count(6).String())
}

func TestLot_MeasureAndOfficialTotal(t *testing.T) {
	assert.Equal(t, Weight(500), Lot{Quantity: 500, Carat: 20}.Measure(), "kg wins on legacy records")
	assert.Equal(t, Count(20), Lot{Carat: 20}.Measure())

	assert.Equal(t, Weight(497.3), Lot{Quantity: 500, OfficialQty: 497.3}.OfficialTotal())
	assert.Equal(t, Weight(500), Lot{Quantity: 500}.OfficialTotal())
	assert.Equal(t, Count(19), Lot{Carat: 20, OfficialCarat: 19, OfficialQty: 400}.OfficialTotal())
}

func TestLot_SaleDate(t *testing.T) {
	created := time.Date(2026, 1, 20, 8, 0, 0, 0, time.UTC)
	sold := created.Add(48 * time.Hour)

	assert.Equal(t, created, Lot{CreatedAt: created}.SaleDate())
	assert.Equal(t, sold, Lot{CreatedAt: created, SoldAt: &sold}.SaleDate())
}

func TestPaymentStatus_OrDefault(t *testing.T) {
	assert.Equal(t, PaymentPending, PaymentStatus("").OrDefault())
	assert.Equal(t, PaymentPaid, PaymentPaid.OrDefault())
}
