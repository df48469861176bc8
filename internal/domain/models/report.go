package models

import "time"

// DailySettlement is the committee digest persisted once per market day.
type DailySettlement struct {
	Date              time.Time `bson:"date" json:"date"`
	LotsTraded        int       `bson:"lots_traded" json:"lots_traded"`
	SplitsRecorded    int       `bson:"splits_recorded" json:"splits_recorded"`
	GrossSales        float64   `bson:"gross_sales" json:"gross_sales"`
	FarmerCommission  float64   `bson:"farmer_commission" json:"farmer_commission"`
	TraderCommission  float64   `bson:"trader_commission" json:"trader_commission"`
	FarmerPayable     float64   `bson:"farmer_payable" json:"farmer_payable"`
	FarmerOutstanding float64   `bson:"farmer_outstanding" json:"farmer_outstanding"`
	TraderReceivable  float64   `bson:"trader_receivable" json:"trader_receivable"`
	CreatedAt         time.Time `bson:"created_at" json:"created_at"`
}
