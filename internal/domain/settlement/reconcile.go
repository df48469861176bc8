package settlement

import (
	"math"
	"time"

	"github.com/mamadbah2/mandi/internal/domain/models"
)

// Invoice display statuses.
const (
	DisplayPaymentPending = "Payment Pending"
	DisplayFull           = "Full"
	DisplayPartial        = "Partial"
	DisplayWeightPending  = "WeightPending"
	DisplayPending        = "Pending"
)

// Invoice is the canonical settlement view of one lot. Dashboard rows, CSV
// and XLSX exports and the PDF invoice are all rendered from it.
type Invoice struct {
	LotID      string `json:"lot_id"`
	FarmerID   string `json:"farmer_id"`
	FarmerName string `json:"farmer_name"`
	Crop       string `json:"crop"`

	Unit             models.Unit `json:"unit"`
	TotalQuantity    float64     `json:"total_quantity"`
	SoldQuantity     float64     `json:"sold_quantity"`
	AwaitingQuantity float64     `json:"awaiting_quantity"`

	AverageRate    float64 `json:"average_rate"`
	BaseAmount     float64 `json:"base_amount"`
	CommissionRate float64 `json:"commission_rate"`
	Commission     float64 `json:"commission"`
	FinalAmount    float64 `json:"final_amount"`

	SaleStatus     models.SaleStatus `json:"sale_status"`
	PaymentPending bool              `json:"payment_pending"`
	Status         string            `json:"status"`

	Date   time.Time      `json:"date"`
	Splits []models.Split `json:"splits"`
}

// Sold returns the sold figure as a tagged quantity.
func (inv Invoice) Sold() models.Quantity {
	return quantityIn(inv.Unit, inv.SoldQuantity)
}

// Awaiting returns the unsold figure as a tagged quantity.
func (inv Invoice) Awaiting() models.Quantity {
	return quantityIn(inv.Unit, inv.AwaitingQuantity)
}

// Reconcile resolves a lot record, parent or standalone, into its invoice.
// It never fails: partially populated records degrade to zero amounts and a
// Pending status. fallbackName is used when the record has no farmer name.
func Reconcile(lot models.Lot, fallbackName string, rates Rates) Invoice {
	total := lot.OfficialTotal()
	unit := total.Unit()

	var sold, awaiting, gross float64
	splits := cloneSplits(lot.Splits)

	if lot.IsParent {
		sold = pick(unit, lot.AggregatedSoldQty, lot.AggregatedSoldNag)
		awaiting = pick(unit, lot.AwaitingQty, lot.AwaitingNag)
		if math.Abs(sold+awaiting-total.Value()) > Tolerance {
			awaiting = math.Max(0, total.Value()-sold)
		}
		gross = lot.AggregatedSaleAmount
	} else {
		if standaloneSold(lot) {
			sold = total.Value()
			gross = lot.SaleAmount
			if gross <= 0 {
				gross = sumAmounts(splits)
			}
			if len(splits) == 0 {
				splits = append(splits, synthesizeSplit(lot, unit, sold))
			}
		}
		awaiting = math.Max(0, total.Value()-sold)
	}

	status := lot.DisplayStatus
	if status == "" {
		status = DeriveStatus(sold, awaiting)
	}

	rate, commission := farmerCommission(lot, gross, rates)

	inv := Invoice{
		LotID:            lot.ID,
		FarmerID:         lot.FarmerID,
		FarmerName:       lot.FarmerName,
		Crop:             lot.Crop,
		Unit:             unit,
		TotalQuantity:    total.Value(),
		SoldQuantity:     sold,
		AwaitingQuantity: awaiting,
		BaseAmount:       gross,
		CommissionRate:   rate,
		Commission:       commission,
		FinalAmount:      math.Max(0, gross-commission),
		SaleStatus:       status,
		Date:             lot.SaleDate(),
		Splits:           splits,
	}
	if inv.FarmerName == "" {
		inv.FarmerName = fallbackName
	}
	if sold > 0 {
		inv.AverageRate = math.Round(gross/sold*10) / 10
	}
	if status == models.StatusSold {
		payment := lot.FarmerPaymentStatus
		if lot.IsParent {
			payment = lot.AggregatedPaymentStatus
		}
		inv.PaymentPending = payment.OrDefault() == models.PaymentPending
	}
	inv.Status = displayStatus(status, inv.PaymentPending)

	return inv
}

// DeriveStatus classifies a lot from its sold and awaiting figures.
func DeriveStatus(sold, awaiting float64) models.SaleStatus {
	switch {
	case sold > 0 && awaiting <= Tolerance:
		return models.StatusSold
	case sold > 0:
		return models.StatusPartial
	default:
		return models.StatusPending
	}
}

func displayStatus(status models.SaleStatus, paymentPending bool) string {
	if paymentPending {
		return DisplayPaymentPending
	}
	switch status {
	case models.StatusSold:
		return DisplayFull
	case models.StatusPartial:
		return DisplayPartial
	case models.StatusWeightPending:
		return DisplayWeightPending
	default:
		return DisplayPending
	}
}

// farmerCommission returns the effective rate and the commission amount.
// Stored amounts win over rate x gross: the sale may have been booked at a
// rate other than today's default.
func farmerCommission(lot models.Lot, gross float64, rates Rates) (float64, float64) {
	rate := rates.FarmerRate()
	if lot.FarmerCommissionRate > 0 {
		rate = lot.FarmerCommissionRate
	}
	if gross <= 0 {
		return rate, 0
	}

	switch {
	case lot.IsParent && lot.AggregatedFarmerCommission > 0:
		return lot.AggregatedFarmerCommission / gross, lot.AggregatedFarmerCommission
	case lot.FarmerCommission > 0:
		return rate, lot.FarmerCommission
	default:
		return rate, gross * rate
	}
}

func standaloneSold(lot models.Lot) bool {
	switch lot.Status {
	case models.StatusSold, models.StatusCompleted, models.StatusPaid:
		return true
	}
	return lot.FarmerPaymentStatus == models.PaymentPaid
}

func synthesizeSplit(lot models.Lot, unit models.Unit, sold float64) models.Split {
	qty, nag := quantityIn(unit, sold).Fields()
	return models.Split{
		ID:                  lot.ID,
		Qty:                 qty,
		Nag:                 nag,
		Rate:                lot.Rate,
		Amount:              lot.SaleAmount,
		Date:                lot.SaleDate(),
		TraderID:            lot.TraderID,
		TraderName:          lot.TraderName,
		FarmerCommission:    lot.FarmerCommission,
		FarmerPaymentStatus: lot.FarmerPaymentStatus,
		TraderPaymentStatus: lot.TraderPaymentStatus,
	}
}

func sumAmounts(splits []models.Split) float64 {
	var total float64
	for _, s := range splits {
		total += s.Amount
	}
	return total
}

func pick(unit models.Unit, kg, nag float64) float64 {
	if unit == models.UnitKg {
		return kg
	}
	return nag
}

func quantityIn(unit models.Unit, v float64) models.Quantity {
	if unit == models.UnitNag {
		return models.Count(v)
	}
	return models.Weight(v)
}

func cloneSplits(in []models.Split) []models.Split {
	out := make([]models.Split, len(in))
	copy(out, in)
	return out
}
