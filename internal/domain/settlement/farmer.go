package settlement

import (
	"math"
	"time"

	"github.com/mamadbah2/mandi/internal/domain/models"
)

// FarmerShare is the farmer side of one split: gross less commission.
type FarmerShare struct {
	LotID          string    `json:"lot_id"`
	SplitID        string    `json:"split_id"`
	Date           time.Time `json:"date"`
	BaseAmount     float64   `json:"base_amount"`
	CommissionRate float64   `json:"commission_rate"`
	Commission     float64   `json:"commission"`
	NetAmount      float64   `json:"net_amount"`
	PaymentPending bool      `json:"payment_pending"`
}

// ChargeFarmer computes the farmer side of a split. fallbackRate applies
// when the split carries neither a stored rate nor a stored commission,
// usually the effective rate of the split's invoice.
func ChargeFarmer(split models.Split, fallbackRate float64) FarmerShare {
	rate := fallbackRate
	if split.FarmerCommissionRate > 0 {
		rate = split.FarmerCommissionRate
	}

	gross := math.Max(0, split.Amount)
	commission := gross * rate
	if split.FarmerCommission > 0 {
		commission = split.FarmerCommission
	}
	if gross == 0 {
		commission = 0
	}

	return FarmerShare{
		SplitID:        split.ID,
		Date:           split.Date,
		BaseAmount:     gross,
		CommissionRate: rate,
		Commission:     commission,
		NetAmount:      math.Max(0, gross-commission),
		PaymentPending: split.FarmerPaymentStatus.OrDefault() == models.PaymentPending,
	}
}

// FarmerShares derives the farmer side for every split on an invoice.
func FarmerShares(inv Invoice) []FarmerShare {
	shares := make([]FarmerShare, 0, len(inv.Splits))
	for _, split := range inv.Splits {
		share := ChargeFarmer(split, inv.CommissionRate)
		share.LotID = inv.LotID
		shares = append(shares, share)
	}
	return shares
}
