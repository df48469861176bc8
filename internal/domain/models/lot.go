package models

import "time"

// Lot is a farmer's produce entry for one crop on one day. Field names follow
// the records API so stored documents and API payloads share one shape.
type Lot struct {
	ID          string `bson:"_id" json:"_id"`
	FarmerID    string `bson:"farmer_id" json:"farmer_id"`
	FarmerName  string `bson:"farmer_name,omitempty" json:"farmer_name,omitempty"`
	FarmerPhone string `bson:"farmer_phone,omitempty" json:"farmer_phone,omitempty"`
	Crop        string `bson:"crop" json:"crop"`
	Notes       string `bson:"notes,omitempty" json:"notes,omitempty"`

	// Farmer-declared figures. Exactly one is positive.
	Quantity float64 `bson:"quantity" json:"quantity"`
	Carat    float64 `bson:"carat" json:"carat"`

	// Figures confirmed by weighing staff.
	OfficialQty     float64 `bson:"official_qty" json:"official_qty"`
	OfficialCarat   float64 `bson:"official_carat" json:"official_carat"`
	WeightConfirmed bool    `bson:"weight_confirmed" json:"weight_confirmed"`

	IsParent bool    `bson:"is_parent" json:"is_parent"`
	Splits   []Split `bson:"splits,omitempty" json:"splits,omitempty"`

	// Standalone sale fields.
	Status              SaleStatus    `bson:"status,omitempty" json:"status,omitempty"`
	Rate                float64       `bson:"rate,omitempty" json:"rate,omitempty"`
	SaleAmount          float64       `bson:"sale_amount,omitempty" json:"sale_amount,omitempty"`
	TraderID            string        `bson:"trader_id,omitempty" json:"trader_id,omitempty"`
	TraderName          string        `bson:"trader_name,omitempty" json:"trader_name,omitempty"`
	FarmerPaymentStatus PaymentStatus `bson:"farmer_payment_status,omitempty" json:"farmer_payment_status,omitempty"`
	TraderPaymentStatus PaymentStatus `bson:"trader_payment_status,omitempty" json:"trader_payment_status,omitempty"`

	FarmerCommissionRate float64 `bson:"farmer_commission_rate,omitempty" json:"farmer_commission_rate,omitempty"`
	FarmerCommission     float64 `bson:"farmer_commission,omitempty" json:"farmer_commission,omitempty"`

	// Cached aggregates over Splits, parent lots only.
	AggregatedSoldQty          float64       `bson:"aggregated_sold_qty" json:"aggregated_sold_qty"`
	AggregatedSoldNag          float64       `bson:"aggregated_sold_nag" json:"aggregated_sold_nag"`
	AwaitingQty                float64       `bson:"awaiting_qty" json:"awaiting_qty"`
	AwaitingNag                float64       `bson:"awaiting_nag" json:"awaiting_nag"`
	AggregatedSaleAmount       float64       `bson:"aggregated_sale_amount" json:"aggregated_sale_amount"`
	AggregatedPaymentStatus    PaymentStatus `bson:"aggregated_payment_status,omitempty" json:"aggregated_payment_status,omitempty"`
	AggregatedFarmerCommission float64       `bson:"aggregated_farmer_commission" json:"aggregated_farmer_commission"`

	// DisplayStatus is an upstream hint and wins over derived status.
	DisplayStatus SaleStatus `bson:"display_status,omitempty" json:"display_status,omitempty"`

	SoldAt    *time.Time `bson:"sold_at,omitempty" json:"sold_at,omitempty"`
	CreatedAt time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time  `bson:"updatedAt" json:"updatedAt"`
	Version   int64      `bson:"version" json:"version"`
}

// Split is one partial sale of a lot to a trader.
type Split struct {
	ID         string    `bson:"id" json:"id"`
	Qty        float64   `bson:"qty" json:"qty"`
	Nag        float64   `bson:"nag" json:"nag"`
	Rate       float64   `bson:"rate" json:"rate"`
	Amount     float64   `bson:"amount" json:"amount"`
	Date       time.Time `bson:"date" json:"date"`
	TraderID   string    `bson:"trader_id" json:"trader_id"`
	TraderName string    `bson:"trader_name,omitempty" json:"trader_name,omitempty"`

	FarmerCommissionRate float64 `bson:"farmer_commission_rate,omitempty" json:"farmer_commission_rate,omitempty"`
	FarmerCommission     float64 `bson:"farmer_commission,omitempty" json:"farmer_commission,omitempty"`
	TraderCommissionRate float64 `bson:"trader_commission_rate,omitempty" json:"trader_commission_rate,omitempty"`
	TraderCommission     float64 `bson:"trader_commission,omitempty" json:"trader_commission,omitempty"`

	FarmerPaymentStatus PaymentStatus `bson:"farmer_payment_status,omitempty" json:"farmer_payment_status,omitempty"`
	TraderPaymentStatus PaymentStatus `bson:"trader_payment_status,omitempty" json:"trader_payment_status,omitempty"`
}

// Measure returns the lot's unit and its declared amount.
func (l Lot) Measure() Quantity {
	return resolveQuantity(l.Quantity, l.Carat)
}

// OfficialTotal returns the confirmed total in the lot's unit, falling back to
// the declared amount while weighing is outstanding.
func (l Lot) OfficialTotal() Quantity {
	declared := l.Measure()
	official := l.OfficialQty
	if !declared.IsWeight() {
		official = l.OfficialCarat
	}
	if official > 0 {
		return declared.WithValue(official)
	}
	return declared
}

// Size returns the split's quantity in the given unit.
func (s Split) Size(unit Unit) float64 {
	if unit == UnitKg {
		return s.Qty
	}
	return s.Nag
}

// SaleDate returns the sale timestamp when known, else the creation time.
func (l Lot) SaleDate() time.Time {
	if l.SoldAt != nil && !l.SoldAt.IsZero() {
		return *l.SoldAt
	}
	return l.CreatedAt
}
