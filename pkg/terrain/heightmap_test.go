package terrain

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestNewHeightmap_Shape(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		samples int
		wantErr bool
	}{
		{"valid", HeightmapSize, HeightmapSize * HeightmapSize, false},
		{"too small", 128, 128 * 128, true},
		{"too large", 257, 257 * 257, true},
		{"short samples", HeightmapSize, HeightmapSize*HeightmapSize - 1, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewHeightmap(tc.size, make([]float32, tc.samples))
			if tc.wantErr {
				if !errors.Is(err, ErrInputShape) {
					t.Errorf("expected ErrInputShape, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestNewHeightmap_NonFinite(t *testing.T) {
	tests := []struct {
		name  string
		value float32
	}{
		{"nan", float32(math.NaN())},
		{"positive infinity", float32(math.Inf(1))},
		{"negative infinity", float32(math.Inf(-1))},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			samples := make([]float32, HeightmapSize*HeightmapSize)
			samples[5*HeightmapSize+7] = tc.value
			_, err := NewHeightmap(HeightmapSize, samples)
			if !errors.Is(err, ErrInputShape) {
				t.Fatalf("expected ErrInputShape, got %v", err)
			}
			if !strings.Contains(err.Error(), "(5, 7)") {
				t.Errorf("error does not name the sample: %v", err)
			}

			hm := HeightmapFunc(func(row, col int) float32 {
				if row == 40 && col == 40 {
					return tc.value
				}
				return 0
			})
			if err := hm.Validate(); !errors.Is(err, ErrInputShape) {
				t.Errorf("Validate: expected ErrInputShape, got %v", err)
			}
		})
	}
}

func TestNewHeightmap_CopiesInput(t *testing.T) {
	samples := make([]float32, HeightmapSize*HeightmapSize)
	samples[0] = 5
	hm, err := NewHeightmap(HeightmapSize, samples)
	if err != nil {
		t.Fatalf("NewHeightmap failed: %v", err)
	}
	samples[0] = 99
	if hm.At(0, 0) != 5 {
		t.Errorf("heightmap aliases caller samples: got %f", hm.At(0, 0))
	}
}

func TestHeightmap_Range(t *testing.T) {
	hm := HeightmapFunc(func(row, col int) float32 {
		return float32(row - col)
	})
	min, max := hm.Range()
	if min != -128 || max != 128 {
		t.Errorf("expected (-128, 128), got (%f, %f)", min, max)
	}
}

func TestHeightmap_SampleHalf(t *testing.T) {
	hm := HeightmapFunc(func(row, col int) float32 {
		return float32(row*10 + col)
	})

	tests := []struct {
		hr, hc int
		want   float32
	}{
		{0, 0, 0},
		{2, 4, 12},      // sample (1, 2)
		{1, 1, 5.5},     // mean of 0, 1, 10, 11
		{1, 0, 5},       // between rows
		{0, 3, 1.5},     // between cols
		{-3, -3, 0},     // clamped
		{300, 300, 1408}, // clamped to (128, 128)
	}
	for _, tc := range tests {
		if got := hm.sampleHalf(tc.hr, tc.hc); got != tc.want {
			t.Errorf("sampleHalf(%d, %d) = %f, want %f", tc.hr, tc.hc, got, tc.want)
		}
	}
}
