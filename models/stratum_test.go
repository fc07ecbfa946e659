package models

import (
	"errors"
	"math"
	"testing"
)

func TestBandSetIndex(t *testing.T) {
	b := BandSet{Boundaries: []float64{0, 60, 90, 144}}

	tests := []struct {
		v    float64
		want int
	}{
		{0, 0},
		{59.99, 0},
		{60, 1},
		{89.5, 1},
		{90, 2},
		{143.9, 2},
		{144, 3},
		{1000, 3},
		{-1, -1},
	}

	for _, tt := range tests {
		if got := b.Index(tt.v); got != tt.want {
			t.Errorf("Index(%g) = %d; want %d", tt.v, got, tt.want)
		}
	}
}

func TestBandSetMidpoint(t *testing.T) {
	b := BandSet{Boundaries: []float64{0, 60, 90, 144}}

	tests := []struct {
		band int
		want float64
	}{
		{0, 30},
		{1, 75},
		{2, 117},
		{3, 171},
	}
	for _, tt := range tests {
		got, ok := b.Midpoint(tt.band)
		if !ok || got != tt.want {
			t.Errorf("Midpoint(%d) = %g, %v; want %g", tt.band, got, ok, tt.want)
		}
	}

	b.OpenMidpoint = 200
	if got, _ := b.Midpoint(3); got != 200 {
		t.Errorf("configured open midpoint: got %g, want 200", got)
	}

	lone := BandSet{Boundaries: []float64{0}}
	if _, ok := lone.Midpoint(0); ok {
		t.Error("lone open band without a configured midpoint should have no midpoint")
	}
}

func TestBandSetValidate(t *testing.T) {
	tests := []struct {
		name string
		b    BandSet
		ok   bool
	}{
		{"valid", BandSet{Boundaries: []float64{0, 60, 90}}, true},
		{"empty", BandSet{}, false},
		{"gap at start", BandSet{Boundaries: []float64{10, 60}}, false},
		{"not increasing", BandSet{Boundaries: []float64{0, 60, 60}}, false},
		{"midpoint below top", BandSet{Boundaries: []float64{0, 60}, OpenMidpoint: 50}, false},
		{"infinite boundary", BandSet{Boundaries: []float64{0, 60, math.Inf(1)}}, false},
		{"NaN boundary", BandSet{Boundaries: []float64{0, math.NaN(), 90}}, false},
		{"NaN after last", BandSet{Boundaries: []float64{0, 60, math.NaN()}}, false},
		{"infinite midpoint", BandSet{Boundaries: []float64{0, 60}, OpenMidpoint: math.Inf(1)}, false},
		{"NaN midpoint", BandSet{Boundaries: []float64{0, 60}, OpenMidpoint: math.NaN()}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.b.Validate("floor_area_bands")
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok {
				var cfgErr *ConfigurationError
				if !errors.As(err, &cfgErr) {
					t.Fatalf("expected ConfigurationError, got %v", err)
				}
			}
		})
	}
}

func TestStratumKeyCoarser(t *testing.T) {
	k := StratumKey{Tier: 2, AreaBand: 1, AgeBand: 3}

	c1, ok := k.Coarser()
	if !ok || c1 != (StratumKey{Tier: 2, AreaBand: 1, AgeBand: AnyBand}) {
		t.Fatalf("first coarsening: got %v, %v", c1, ok)
	}
	c2, ok := c1.Coarser()
	if !ok || c2 != (StratumKey{Tier: 2, AreaBand: AnyBand, AgeBand: AnyBand}) {
		t.Fatalf("second coarsening: got %v, %v", c2, ok)
	}
	if _, ok := c2.Coarser(); ok {
		t.Error("tier-only key should not coarsen further")
	}
	if c2.String() != "t2/a*/g*" {
		t.Errorf("String: got %q", c2.String())
	}
}

func TestBandsKeysCoverGrid(t *testing.T) {
	b := Bands{
		TierCount: 4,
		FloorArea: BandSet{Boundaries: []float64{0, 60, 90}},
		Age:       BandSet{Boundaries: []float64{0, 10}},
	}
	keys := b.Keys()
	if len(keys) != 4*3*2 {
		t.Fatalf("Keys: got %d, want 24", len(keys))
	}
	for i := 1; i < len(keys); i++ {
		if !keys[i-1].Less(keys[i]) {
			t.Errorf("keys not in order at %d: %v then %v", i, keys[i-1], keys[i])
		}
	}
	for _, k := range keys {
		if !b.Contains(k) {
			t.Errorf("grid key %v not contained", k)
		}
	}
}
