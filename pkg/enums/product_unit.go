package enums

import "fmt"

// ProductUnit is the sales unit for an agricultural product.
type ProductUnit string

const (
	ProductUnitKilogram ProductUnit = "kg"
	ProductUnitLiter    ProductUnit = "l"
	ProductUnitPiece    ProductUnit = "piece"
	ProductUnitSack     ProductUnit = "sack"
	ProductUnitCrate    ProductUnit = "crate"
)

var validProductUnits = []ProductUnit{
	ProductUnitKilogram,
	ProductUnitLiter,
	ProductUnitPiece,
	ProductUnitSack,
	ProductUnitCrate,
}

// String implements fmt.Stringer.
func (p ProductUnit) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProductUnit.
func (p ProductUnit) IsValid() bool {
	for _, candidate := range validProductUnits {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProductUnit converts raw input into a ProductUnit.
func ParseProductUnit(value string) (ProductUnit, error) {
	for _, candidate := range validProductUnits {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product unit %q", value)
}
