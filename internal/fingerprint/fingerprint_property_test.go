//go:build property

package fingerprint

import (
	"bytes"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestFingerprintProperties validates checksum and store invariants
func TestFingerprintProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4242)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	for _, alg := range Algorithms {
		hasher, err := NewHasher(alg)
		if err != nil {
			t.Fatal(err)
		}

		properties.Property(string(alg)+" checksum is stable for identical content", prop.ForAll(
			func(data []byte) bool {
				a, errA := hasher(bytes.NewReader(data))
				b, errB := hasher(bytes.NewReader(append([]byte(nil), data...)))
				return errA == nil && errB == nil && a == b
			},
			gen.SliceOf(gen.UInt8()),
		))
	}

	properties.Property("adler32 hasher agrees with Checksum", prop.ForAll(
		func(data []byte) bool {
			h, _ := NewHasher(Adler32)
			sum, err := h(bytes.NewReader(data))
			return err == nil && sum == Checksum(data)
		},
		gen.SliceOf(gen.UInt8()),
	))

	properties.Property("observe reports change iff checksum differs from previous", prop.ForAll(
		func(sums []uint32) bool {
			store := NewStore(nil)
			var prev uint32
			for i, sum := range sums {
				changed := store.Observe(FileRecord{Path: "/p/lib.rs", Checksum: sum})
				want := i == 0 || sum != prev
				if changed != want {
					return false
				}
				prev = sum
			}
			return true
		},
		gen.SliceOf(gen.UInt32Range(0, 3)),
	))

	properties.TestingRun(t)
}
