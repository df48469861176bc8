package models

// SaleStatus is the derived sale state of a lot.
type SaleStatus string

const (
	StatusPending       SaleStatus = "Pending"
	StatusPartial       SaleStatus = "Partial"
	StatusSold          SaleStatus = "Sold"
	StatusWeightPending SaleStatus = "WeightPending"

	// Legacy standalone record states that count as sold.
	StatusCompleted SaleStatus = "Completed"
	StatusPaid      SaleStatus = "Paid"
)

// PaymentStatus tracks settlement with one counterparty.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "Pending"
	PaymentPaid    PaymentStatus = "Paid"
)

// OrDefault returns Pending for an unset payment status.
func (p PaymentStatus) OrDefault() PaymentStatus {
	if p == "" {
		return PaymentPending
	}
	return p
}
