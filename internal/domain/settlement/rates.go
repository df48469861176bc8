package settlement

const (
	// DefaultFarmerRate is deducted from the farmer's gross sale.
	DefaultFarmerRate = 0.04
	// DefaultTraderRate is charged to the trader on top of the gross sale.
	DefaultTraderRate = 0.09

	// Tolerance absorbs float drift when summing many small splits.
	Tolerance = 0.01
)

// Rates holds the two commission rates of the market committee. The farmer
// side is subtractive, the trader side is additive; they are configured
// independently.
type Rates struct {
	Farmer float64
	Trader float64
}

// DefaultRates returns the platform defaults.
func DefaultRates() Rates {
	return Rates{Farmer: DefaultFarmerRate, Trader: DefaultTraderRate}
}

// FarmerRate returns the configured farmer rate or the platform default.
func (r Rates) FarmerRate() float64 {
	if r.Farmer > 0 {
		return r.Farmer
	}
	return DefaultFarmerRate
}

// TraderRate returns the configured trader rate or the platform default.
func (r Rates) TraderRate() float64 {
	if r.Trader > 0 {
		return r.Trader
	}
	return DefaultTraderRate
}
