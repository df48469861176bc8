package settlement

import (
	"math"

	"github.com/mamadbah2/mandi/internal/domain/models"
)

// Aggregate recomputes the cached aggregate fields of a lot from its splits
// and returns the updated copy. The result is always a parent lot with
// sold + awaiting equal to the official total, unless the splits oversell it.
func Aggregate(lot models.Lot) models.Lot {
	out := lot
	out.Splits = cloneSplits(lot.Splits)
	out.IsParent = true

	total := lot.OfficialTotal()
	unit := total.Unit()

	var sold, amount, commission float64
	paid := len(out.Splits) > 0
	var lastSale *models.Split
	for i := range out.Splits {
		s := &out.Splits[i]
		sold += s.Size(unit)
		amount += s.Amount
		commission += s.FarmerCommission
		if s.FarmerPaymentStatus.OrDefault() != models.PaymentPaid {
			paid = false
		}
		if lastSale == nil || s.Date.After(lastSale.Date) {
			lastSale = s
		}
	}
	awaiting := math.Max(0, total.Value()-sold)

	out.AggregatedSoldQty, out.AggregatedSoldNag = quantityIn(unit, sold).Fields()
	out.AwaitingQty, out.AwaitingNag = quantityIn(unit, awaiting).Fields()
	out.AggregatedSaleAmount = amount
	out.AggregatedFarmerCommission = commission
	out.AggregatedPaymentStatus = models.PaymentPending
	if paid {
		out.AggregatedPaymentStatus = models.PaymentPaid
	}

	if lastSale != nil {
		soldAt := lastSale.Date
		out.SoldAt = &soldAt
	}

	if lot.WeightConfirmed {
		out.DisplayStatus = DeriveStatus(sold, awaiting)
	} else {
		out.DisplayStatus = models.StatusWeightPending
	}

	return out
}

// SoldQuantity returns how much of the lot has been sold in its own unit,
// for either record shape.
func SoldQuantity(lot models.Lot) float64 {
	unit := lot.Measure().Unit()
	if lot.IsParent {
		return pick(unit, lot.AggregatedSoldQty, lot.AggregatedSoldNag)
	}
	if standaloneSold(lot) {
		return lot.OfficialTotal().Value()
	}
	var sold float64
	for _, s := range lot.Splits {
		sold += s.Size(unit)
	}
	return sold
}
