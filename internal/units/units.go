// Package units converts recipe quantities into the unit an inventory item
// is stocked in. Conversion never crosses families: grams do not become
// milliliters and "each" does not become pounds.
package units

import (
	"errors"
	"fmt"
	"strings"
)

var ErrIncompatibleUnits = errors.New("incompatible units")

type family int

const (
	familyMass family = iota + 1
	familyVolume
	familyCount
)

type unitDef struct {
	family family
	// toBase is how many base units (g, ml, each) one of this unit holds.
	toBase float64
}

const (
	gramsPerPound   = 453.59237
	mlPerGallon     = 3785.41
	mlPerFluidOunce = 29.5735
)

var canonical = map[string]unitDef{
	"g":     {familyMass, 1},
	"kg":    {familyMass, 1000},
	"lb":    {familyMass, gramsPerPound},
	"oz":    {familyMass, gramsPerPound / 16},
	"ml":    {familyVolume, 1},
	"l":     {familyVolume, 1000},
	"gal":   {familyVolume, mlPerGallon},
	"fl_oz": {familyVolume, mlPerFluidOunce},
	"each":  {familyCount, 1},
}

var aliases = map[string]string{
	"gram": "g", "grams": "g", "gr": "g",
	"kilogram": "kg", "kilograms": "kg", "kgs": "kg",
	"lbs": "lb", "pound": "lb", "pounds": "lb",
	"ounce": "oz", "ounces": "oz",
	"milliliter": "ml", "milliliters": "ml", "millilitre": "ml", "millilitres": "ml",
	"liter": "l", "liters": "l", "litre": "l", "litres": "l",
	"gallon": "gal", "gallons": "gal",
	"floz": "fl_oz", "fl oz": "fl_oz", "fl.oz": "fl_oz", "fluid_ounce": "fl_oz", "fluid ounce": "fl_oz",
	"ea": "each", "pc": "each", "pcs": "each", "piece": "each", "pieces": "each",
	"unit": "each", "units": "each", "ct": "each", "count": "each",
}

// Normalize returns the canonical spelling of unit, or the trimmed lower-case
// input when the unit is not known.
func Normalize(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	if alias, ok := aliases[u]; ok {
		return alias
	}
	return u
}

func Known(unit string) bool {
	_, ok := canonical[Normalize(unit)]
	return ok
}

// Convert expresses qty of from in to. Identical units always convert, even
// when neither is known.
func Convert(qty float64, from string, to string) (float64, error) {
	f, t := Normalize(from), Normalize(to)
	if f == t {
		return qty, nil
	}
	fromDef, ok := canonical[f]
	if !ok {
		return 0, fmt.Errorf("%w: unknown unit %q", ErrIncompatibleUnits, from)
	}
	toDef, ok := canonical[t]
	if !ok {
		return 0, fmt.Errorf("%w: unknown unit %q", ErrIncompatibleUnits, to)
	}
	if fromDef.family != toDef.family {
		return 0, fmt.Errorf("%w: %s to %s", ErrIncompatibleUnits, f, t)
	}
	return qty * fromDef.toBase / toDef.toBase, nil
}
