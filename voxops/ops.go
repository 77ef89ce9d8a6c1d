// Package voxops provides in-place float32 operations on voxel buffers.
//
// This package implements the hot loops that sit between volume space and
// matrix space: gathering masked voxels out of a frame, scattering results
// back, and the per-buffer normalization and similarity primitives used by
// the dataset layer. All operations work in place or into caller-provided
// destinations with zero allocations.
//
// Heavy linear algebra (regression solves, SVD) lives on gonum's mat types;
// voxops only covers the indexed and streaming passes gonum has no shape
// for, chiefly mask gather/scatter by precomputed linear indices.
//
// Accumulations run in float64 even though buffers are float32: voxel counts
// run into the hundreds of thousands and naive float32 sums lose digits.
package voxops

import "math"

// Gather copies src values at the given linear indices into dst.
// dst must have len(idx) elements.
func Gather(dst, src []float32, idx []int32) {
	for i, j := range idx {
		dst[i] = src[j]
	}
}

// Scatter writes src values out to the given linear indices of dst.
// src must have len(idx) elements. Untouched dst elements keep their value.
func Scatter(dst, src []float32, idx []int32) {
	for i, j := range idx {
		dst[j] = src[i]
	}
}

// MeanVar computes the mean and population variance of x in one pass over
// float64 accumulators.
func MeanVar(x []float32) (mean, variance float64) {
	if len(x) == 0 {
		return 0, 0
	}
	var sum, sumSq float64
	for _, v := range x {
		f := float64(v)
		sum += f
		sumSq += f * f
	}
	n := float64(len(x))
	mean = sum / n
	variance = sumSq/n - mean*mean
	if variance < 0 {
		variance = 0 // guard against rounding below zero
	}
	return mean, variance
}

// ZScore standardizes x in place to zero mean and unit variance. A buffer
// with zero variance is set to all zeros.
func ZScore(x []float32) {
	mean, variance := MeanVar(x)
	if variance == 0 {
		for i := range x {
			x[i] = 0
		}
		return
	}
	inv := 1 / math.Sqrt(variance)
	for i := range x {
		x[i] = float32((float64(x[i]) - mean) * inv)
	}
}

// Dot computes the dot product of a and b over float64 accumulation.
// Panics if lengths differ.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) {
		panic("voxops: vector length mismatch")
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Pearson computes the Pearson correlation of a and b. Returns 0 when either
// buffer has zero variance. Panics if lengths differ.
func Pearson(a, b []float32) float64 {
	if len(a) != len(b) {
		panic("voxops: vector length mismatch")
	}
	if len(a) == 0 {
		return 0
	}
	var sumA, sumB, sumAB, sumA2, sumB2 float64
	for i := range a {
		fa, fb := float64(a[i]), float64(b[i])
		sumA += fa
		sumB += fb
		sumAB += fa * fb
		sumA2 += fa * fa
		sumB2 += fb * fb
	}
	n := float64(len(a))
	cov := sumAB - sumA*sumB/n
	varA := sumA2 - sumA*sumA/n
	varB := sumB2 - sumB*sumB/n
	if varA <= 0 || varB <= 0 {
		return 0
	}
	return cov / math.Sqrt(varA*varB)
}
