package units

import (
	"errors"
	"math"
	"testing"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestConvertMass(t *testing.T) {
	oz, err := Convert(1, "lb", "oz")
	if err != nil || !almostEqual(oz, 16) {
		t.Fatalf("1 lb -> oz = %v, %v", oz, err)
	}
	g, err := Convert(2, "LBS", "gram")
	if err != nil || !almostEqual(g, 907.18474) {
		t.Fatalf("2 lb -> g = %v, %v", g, err)
	}
	kg, err := Convert(1500, "g", "kg")
	if err != nil || !almostEqual(kg, 1.5) {
		t.Fatalf("1500 g -> kg = %v, %v", kg, err)
	}
}

func TestConvertVolume(t *testing.T) {
	ml, err := Convert(1, "gallon", "ml")
	if err != nil || !almostEqual(ml, 3785.41) {
		t.Fatalf("1 gal -> ml = %v, %v", ml, err)
	}
	l, err := Convert(250, "ml", "Liter")
	if err != nil || !almostEqual(l, 0.25) {
		t.Fatalf("250 ml -> l = %v, %v", l, err)
	}
	flOz, err := Convert(29.5735, "ml", "fl oz")
	if err != nil || !almostEqual(flOz, 1) {
		t.Fatalf("29.5735 ml -> fl_oz = %v, %v", flOz, err)
	}
}

func TestRoundTripPoundOunce(t *testing.T) {
	oz, err := Convert(1, "lb", "oz")
	if err != nil {
		t.Fatalf("lb -> oz: %v", err)
	}
	lb, err := Convert(oz, "oz", "lb")
	if err != nil {
		t.Fatalf("oz -> lb: %v", err)
	}
	if !almostEqual(lb, 1) {
		t.Fatalf("round trip drifted: %v", lb)
	}
}

func TestConvertIdentityForUnknownUnit(t *testing.T) {
	got, err := Convert(3, "shot", "shot")
	if err != nil || got != 3 {
		t.Fatalf("identity conversion = %v, %v", got, err)
	}
}

func TestConvertRejectsCrossFamily(t *testing.T) {
	if _, err := Convert(1, "each", "lb"); !errors.Is(err, ErrIncompatibleUnits) {
		t.Fatalf("expected incompatible units, got %v", err)
	}
	if _, err := Convert(1, "g", "ml"); !errors.Is(err, ErrIncompatibleUnits) {
		t.Fatalf("expected incompatible units, got %v", err)
	}
	if _, err := Convert(1, "shot", "ml"); !errors.Is(err, ErrIncompatibleUnits) {
		t.Fatalf("expected unknown unit to be incompatible, got %v", err)
	}
}

func TestNormalizeAliases(t *testing.T) {
	for in, want := range map[string]string{"Pcs": "each", " ounces ": "oz", "litre": "l", "kg": "kg"} {
		if got := Normalize(in); got != want {
			t.Fatalf("Normalize(%q) = %q want %q", in, got, want)
		}
	}
	if !Known("pound") || Known("shot") {
		t.Fatalf("unexpected Known result")
	}
}
