package syntax

import (
	"math"
	"testing"
)

func TestParseCoordinateString(t *testing.T) {
	got, err := ParseCoordinateString("X10 Y-5.2 Z0")
	if err != nil {
		t.Fatalf("ParseCoordinateString() error: %v", err)
	}
	want := map[string]float64{"X": 10, "Y": -5.2, "Z": 0}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("got[%q] = %v, want %v", k, got[k], v)
		}
	}
	if len(got) != len(want) {
		t.Errorf("got %v extra/missing keys, want exactly %v", got, want)
	}
}

func TestParseCoordinateStringIgnoresUnknownLetters(t *testing.T) {
	got, err := ParseCoordinateString("F100 X5 S2000")
	if err != nil {
		t.Fatalf("ParseCoordinateString() error: %v", err)
	}
	if _, ok := got["F"]; ok {
		t.Errorf("F should be ignored, not a recognised axis letter")
	}
	if got["X"] != 5 {
		t.Errorf("X = %v, want 5", got["X"])
	}
}

func TestParseCoordinateStringMissingValue(t *testing.T) {
	if _, err := ParseCoordinateString("X"); err == nil {
		t.Fatal("expected an error for a letter with no numeric value")
	}
}

func TestDistanceAndMidpoint(t *testing.T) {
	a := Point3{X: 0, Y: 0, Z: 0}
	b := Point3{X: 3, Y: 4, Z: 0}
	if d := Distance(a, b); math.Abs(d-5) > 1e-9 {
		t.Errorf("Distance() = %v, want 5", d)
	}
	m := Midpoint(a, b)
	if m != (Point3{X: 1.5, Y: 2, Z: 0}) {
		t.Errorf("Midpoint() = %+v", m)
	}
}

func TestValidateGCodeLine(t *testing.T) {
	if !ValidateGCodeLine("G1 X10 Y0 F1000") {
		t.Error("expected a well-formed line to validate")
	}
	if ValidateGCodeLine("G1 X10 W5") {
		t.Error("expected an unrecognised word letter to fail validation")
	}
}
