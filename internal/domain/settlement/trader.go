package settlement

import (
	"math"
	"time"

	"github.com/mamadbah2/mandi/internal/domain/models"
)

// TraderCharge is what one trader owes the committee for one split.
type TraderCharge struct {
	LotID      string      `json:"lot_id"`
	SplitID    string      `json:"split_id"`
	TraderID   string      `json:"trader_id"`
	TraderName string      `json:"trader_name"`
	Crop       string      `json:"crop"`
	Date       time.Time   `json:"date"`
	Unit       models.Unit `json:"unit"`
	Quantity   float64     `json:"quantity"`
	Rate       float64     `json:"rate"`

	BaseAmount     float64 `json:"base_amount"`
	CommissionRate float64 `json:"commission_rate"`
	Commission     float64 `json:"commission"`
	TotalPayable   float64 `json:"total_payable"`
	PaymentPending bool    `json:"payment_pending"`
}

// ChargeTrader computes the trader side of a split: gross plus commission.
func ChargeTrader(split models.Split, unit models.Unit, rates Rates) TraderCharge {
	rate := rates.TraderRate()
	if split.TraderCommissionRate > 0 {
		rate = split.TraderCommissionRate
	}

	gross := math.Max(0, split.Amount)
	commission := gross * rate
	if split.TraderCommission > 0 {
		commission = split.TraderCommission
	}
	if gross == 0 {
		commission = 0
	}

	return TraderCharge{
		SplitID:        split.ID,
		TraderID:       split.TraderID,
		TraderName:     split.TraderName,
		Date:           split.Date,
		Unit:           unit,
		Quantity:       split.Size(unit),
		Rate:           split.Rate,
		BaseAmount:     gross,
		CommissionRate: rate,
		Commission:     commission,
		TotalPayable:   gross + commission,
		PaymentPending: split.TraderPaymentStatus.OrDefault() == models.PaymentPending,
	}
}

// TraderCharges derives the trader side for every split on an invoice.
func TraderCharges(inv Invoice, rates Rates) []TraderCharge {
	charges := make([]TraderCharge, 0, len(inv.Splits))
	for _, split := range inv.Splits {
		charge := ChargeTrader(split, inv.Unit, rates)
		charge.LotID = inv.LotID
		charge.Crop = inv.Crop
		charges = append(charges, charge)
	}
	return charges
}
