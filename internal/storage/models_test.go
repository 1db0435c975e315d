package storage

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseDirection(t *testing.T) {
	for _, valid := range []string{"gte", "lte", "strict_above", "strict_below"} {
		if _, err := ParseDirection(valid); err != nil {
			t.Fatalf("ParseDirection(%q): %v", valid, err)
		}
	}
	for _, invalid := range []string{"", "above", "GTE", ">="} {
		if _, err := ParseDirection(invalid); err == nil {
			t.Fatalf("ParseDirection(%q) should fail", invalid)
		}
	}
}

func TestDirectionSatisfied(t *testing.T) {
	target := decimal.NewFromFloat(0.85)
	equal := decimal.NewFromFloat(0.85)
	above := decimal.NewFromFloat(0.86)
	below := decimal.NewFromFloat(0.84)

	cases := []struct {
		direction Direction
		current   decimal.Decimal
		want      bool
	}{
		{DirectionGTE, equal, true},
		{DirectionGTE, above, true},
		{DirectionGTE, below, false},
		{DirectionLTE, equal, true},
		{DirectionLTE, below, true},
		{DirectionLTE, above, false},
		{DirectionStrictAbove, equal, false},
		{DirectionStrictAbove, above, true},
		{DirectionStrictBelow, equal, false},
		{DirectionStrictBelow, below, true},
	}

	for _, tc := range cases {
		if got := tc.direction.Satisfied(tc.current, target); got != tc.want {
			t.Fatalf("%s.Satisfied(%s, %s) = %v, want %v",
				tc.direction, tc.current, target, got, tc.want)
		}
	}
}

func TestAlertEligible(t *testing.T) {
	cases := []struct {
		active   bool
		notified bool
		want     bool
	}{
		{true, false, true},
		{true, true, false},
		{false, false, false},
		{false, true, false},
	}
	for _, tc := range cases {
		a := Alert{Active: tc.active, Notified: tc.notified}
		if a.Eligible() != tc.want {
			t.Fatalf("Eligible(active=%v notified=%v) = %v", tc.active, tc.notified, a.Eligible())
		}
	}
}

func TestDefaultPreference(t *testing.T) {
	pref := DefaultPreference("u1")
	if !pref.InApp || pref.Email || pref.Push {
		t.Fatalf("default should be in-app only: %+v", pref)
	}
}
