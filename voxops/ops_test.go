package voxops

import (
	"math"
	"testing"
)

func TestGatherScatter(t *testing.T) {
	t.Parallel()
	src := []float32{10, 11, 12, 13, 14, 15}
	idx := []int32{5, 0, 3}

	dst := make([]float32, len(idx))
	Gather(dst, src, idx)
	want := []float32{15, 10, 13}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("Gather dst[%d] = %v, want %v", i, dst[i], want[i])
		}
	}

	out := make([]float32, len(src))
	Scatter(out, dst, idx)
	if out[5] != 15 || out[0] != 10 || out[3] != 13 {
		t.Errorf("Scatter wrote wrong positions: %v", out)
	}
	if out[1] != 0 || out[2] != 0 || out[4] != 0 {
		t.Errorf("Scatter touched unmasked positions: %v", out)
	}
}

func TestMeanVar(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		x        []float32
		wantMean float64
		wantVar  float64
	}{
		{name: "empty", x: nil, wantMean: 0, wantVar: 0},
		{name: "constant", x: []float32{3, 3, 3, 3}, wantMean: 3, wantVar: 0},
		{name: "simple", x: []float32{1, 2, 3, 4}, wantMean: 2.5, wantVar: 1.25},
		{name: "single", x: []float32{7}, wantMean: 7, wantVar: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mean, variance := MeanVar(tt.x)
			if math.Abs(mean-tt.wantMean) > 1e-9 {
				t.Errorf("mean = %v, want %v", mean, tt.wantMean)
			}
			if math.Abs(variance-tt.wantVar) > 1e-9 {
				t.Errorf("variance = %v, want %v", variance, tt.wantVar)
			}
		})
	}
}

func TestZScore(t *testing.T) {
	t.Parallel()
	x := []float32{2, 4, 6, 8}
	ZScore(x)

	mean, variance := MeanVar(x)
	if math.Abs(mean) > 1e-6 {
		t.Errorf("zscored mean = %v, want 0", mean)
	}
	if math.Abs(variance-1) > 1e-5 {
		t.Errorf("zscored variance = %v, want 1", variance)
	}
}

func TestZScoreZeroVariance(t *testing.T) {
	t.Parallel()
	x := []float32{5, 5, 5}
	ZScore(x)
	for i, v := range x {
		if v != 0 {
			t.Errorf("x[%d] = %v, want 0 for constant input", i, v)
		}
	}
}

func TestDot(t *testing.T) {
	t.Parallel()
	a := []float32{1, 2, 3}
	b := []float32{4, 5, 6}
	if got := Dot(a, b); got != 32 {
		t.Errorf("Dot = %v, want 32", got)
	}
}

func TestDotMismatchPanics(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Error("Dot did not panic on length mismatch")
		}
	}()
	Dot([]float32{1}, []float32{1, 2})
}

func TestPearson(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "perfect positive", a: []float32{1, 2, 3, 4}, b: []float32{2, 4, 6, 8}, want: 1},
		{name: "perfect negative", a: []float32{1, 2, 3, 4}, b: []float32{8, 6, 4, 2}, want: -1},
		{name: "constant input", a: []float32{1, 1, 1}, b: []float32{1, 2, 3}, want: 0},
		{name: "empty", a: nil, b: nil, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Pearson(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Pearson = %v, want %v", got, tt.want)
			}
		})
	}
}
