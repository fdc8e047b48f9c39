// Package vecops provides the element-wise and reduction primitives the
// upper kernels are built on. A process-lifetime dispatcher selects between
// gonum's assembly kernels and a compensated scalar reference depending on
// what the CPU supports.
package vecops

import (
	"sync"

	"github.com/klauspost/cpuid/v2"
	"gonum.org/v1/gonum/floats"

	"github.com/quantfold/analytics/pkg/errs"
)

// Capability reports the SIMD tiers available on this machine.
type Capability struct {
	Wide   bool // AVX2
	Narrow bool // SSE2
}

// None reports whether only the scalar path is available.
func (c Capability) None() bool {
	return !c.Wide && !c.Narrow
}

var (
	dispatchOnce sync.Once
	caps         Capability
	useFast      bool
)

func dispatch() {
	dispatchOnce.Do(func() {
		caps = Capability{
			Wide:   cpuid.CPU.Supports(cpuid.AVX2),
			Narrow: cpuid.CPU.Supports(cpuid.SSE2),
		}
		useFast = caps.Wide || caps.Narrow
	})
}

// Capabilities returns the detected SIMD tiers. The detection runs once and
// the chosen path is fixed for the process lifetime.
func Capabilities() Capability {
	dispatch()
	return caps
}

// Add computes dst[i] = a[i] + b[i]. All three slices must share one length.
func Add(dst, a, b []float64) error {
	if len(a) != len(b) || len(dst) != len(a) {
		return errs.InvalidInput("vector add: lengths %d, %d, %d differ", len(dst), len(a), len(b))
	}
	dispatch()
	if useFast {
		floats.AddTo(dst, a, b)
		return nil
	}
	for i := range a {
		dst[i] = a[i] + b[i]
	}
	return nil
}

// Sub computes dst[i] = a[i] - b[i].
func Sub(dst, a, b []float64) error {
	if len(a) != len(b) || len(dst) != len(a) {
		return errs.InvalidInput("vector sub: lengths %d, %d, %d differ", len(dst), len(a), len(b))
	}
	dispatch()
	if useFast {
		floats.SubTo(dst, a, b)
		return nil
	}
	for i := range a {
		dst[i] = a[i] - b[i]
	}
	return nil
}

// Mul computes dst[i] = a[i] * b[i].
func Mul(dst, a, b []float64) error {
	if len(a) != len(b) || len(dst) != len(a) {
		return errs.InvalidInput("vector mul: lengths %d, %d, %d differ", len(dst), len(a), len(b))
	}
	dispatch()
	if useFast {
		floats.MulTo(dst, a, b)
		return nil
	}
	for i := range a {
		dst[i] = a[i] * b[i]
	}
	return nil
}

// Sum returns the sum of a. Empty input returns the additive identity.
func Sum(a []float64) float64 {
	if len(a) == 0 {
		return 0
	}
	dispatch()
	if useFast {
		return floats.Sum(a)
	}
	return kahanSum(a)
}

// Dot returns the inner product of a and b.
func Dot(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, errs.InvalidInput("dot product: lengths %d and %d differ", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, nil
	}
	dispatch()
	if useFast {
		return floats.Dot(a, b), nil
	}
	return kahanDot(a, b), nil
}

// kahanSum is the compensated scalar reference for Sum.
func kahanSum(a []float64) float64 {
	var sum, c float64
	for _, v := range a {
		y := v - c
		t := sum + y
		c = (t - sum) - y
		sum = t
	}
	return sum
}

// kahanDot is the compensated scalar reference for Dot.
func kahanDot(a, b []float64) float64 {
	var sum, c float64
	for i := range a {
		y := a[i]*b[i] - c
		t := sum + y
		c = (t - sum) - y
		sum = t
	}
	return sum
}
