// Package rescache memoises deterministic metric outputs keyed by content
// fingerprints of their inputs. The cache owns value copies only; it never
// references a series.
package rescache

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/quantfold/analytics/internal/timeseries"
)

// Key is a 128-bit content fingerprint. Collision-resistant for practical
// workloads, not cryptographic.
type Key struct {
	Hi uint64
	Lo uint64
}

// hiSeed separates the two xxhash passes that make up a Key.
const hiSeed = 0x9e3779b97f4a7c15

// valueStrides caps how many values feed the fingerprint. Long series are
// sampled at a fixed stride so fingerprinting stays O(1)-ish in length
// while remaining deterministic.
const valueStrides = 64

// Fingerprint derives a Key from a series, an operation tag and its numeric
// parameters. It combines series length, first and last timestamps, a
// fixed-stride hash over the values, the tag and the parameters. Stable
// across runs for identical inputs.
func Fingerprint(s *timeseries.TimeSeries, op string, params ...float64) Key {
	lo := xxhash.New()
	hi := xxhash.NewWithSeed(hiSeed)

	var buf [8]byte
	write := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = lo.Write(buf[:])
		_, _ = hi.Write(buf[:])
	}

	n := s.Len()
	write(uint64(n))
	if n > 0 {
		first, _, _ := s.At(0)
		last, _, _ := s.At(n - 1)
		write(uint64(first.UnixNano()))
		write(uint64(last.UnixNano()))

		stride := n / valueStrides
		if stride < 1 {
			stride = 1
		}
		values := s.Values()
		for i := 0; i < n; i += stride {
			write(math.Float64bits(values[i]))
		}
		// Always fold in the final value so tail edits change the key.
		write(math.Float64bits(values[n-1]))
	}

	_, _ = lo.WriteString(op)
	_, _ = hi.WriteString(op)
	for _, p := range params {
		write(math.Float64bits(p))
	}

	return Key{Hi: hi.Sum64(), Lo: lo.Sum64()}
}
