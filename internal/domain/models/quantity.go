package models

import (
	"errors"
	"fmt"
)

// Unit identifies how a lot is measured.
type Unit string

const (
	UnitKg  Unit = "kg"
	UnitNag Unit = "nag"
)

// ErrMixedUnits indicates a record carries both a kg and a unit-count figure.
var ErrMixedUnits = errors.New("lot must be measured in kg or nag, not both")

// ErrNoQuantity indicates a record carries neither a kg nor a unit-count figure.
var ErrNoQuantity = errors.New("lot quantity must be positive")

// Quantity is either a weight in kilograms or a count of crates (nag/carat).
// The zero value is an empty weight.
type Quantity struct {
	unit  Unit
	value float64
}

// Weight builds a kg quantity.
func Weight(kg float64) Quantity {
	return Quantity{unit: UnitKg, value: kg}
}

// Count builds a unit-count quantity.
func Count(units float64) Quantity {
	return Quantity{unit: UnitNag, value: units}
}

// Unit returns the measuring unit. Zero quantities report kg.
func (q Quantity) Unit() Unit {
	if q.unit == "" {
		return UnitKg
	}
	return q.unit
}

// Value returns the magnitude in the quantity's unit.
func (q Quantity) Value() float64 {
	return q.value
}

// IsWeight reports whether the quantity is kg based.
func (q Quantity) IsWeight() bool {
	return q.Unit() == UnitKg
}

// WithValue keeps the unit and replaces the magnitude.
func (q Quantity) WithValue(v float64) Quantity {
	return Quantity{unit: q.Unit(), value: v}
}

// Fields splits the quantity back into the legacy (kg, nag) pair. Exactly
// one side is non-zero.
func (q Quantity) Fields() (kg, nag float64) {
	if q.IsWeight() {
		return q.value, 0
	}
	return 0, q.value
}

func (q Quantity) String() string {
	return fmt.Sprintf("%g %s", q.value, q.Unit())
}

// ParseQuantity validates a (kg, nag) pair coming from a write request.
func ParseQuantity(kg, nag float64) (Quantity, error) {
	switch {
	case kg > 0 && nag > 0:
		return Quantity{}, ErrMixedUnits
	case kg > 0:
		return Weight(kg), nil
	case nag > 0:
		return Count(nag), nil
	default:
		return Quantity{}, ErrNoQuantity
	}
}

// resolveQuantity reads a stored (kg, nag) pair. Stored records that carry
// both figures resolve to kg.
func resolveQuantity(kg, nag float64) Quantity {
	if kg > 0 {
		return Weight(kg)
	}
	return Count(nag)
}
