// Package bloom provides a probabilistic membership filter over registered
// identifier strings. It guarantees no false negatives: if an identifier was
// added, MaybeContains always returns true, so a false answer lets the
// ingestion pipeline skip the store existence probe entirely.
package bloom

import (
	"math"
	"sync"

	"github.com/spaolacci/murmur3"
)

// Filter is a murmur3 double-hashed bloom filter. It is advisory only; the
// store's uniqueness constraint remains the authoritative duplicate guard.
type Filter struct {
	mu        sync.RWMutex
	bits      []uint64
	numBits   uint64
	numHashes uint64
}

// NewWithEstimates creates a Filter sized for the expected number of
// identifiers and target false positive rate.
//
// The formulas are:
//   - m = -n * ln(p) / (ln(2)^2)  where m = bits, n = items, p = FPR
//   - k = (m/n) * ln(2)           where k = hash functions
func NewWithEstimates(expectedItems int, targetFPR float64) *Filter {
	if expectedItems <= 0 {
		expectedItems = 1000
	}
	if targetFPR <= 0 || targetFPR >= 1 {
		targetFPR = 0.01
	}

	n := float64(expectedItems)
	m := -n * math.Log(targetFPR) / (math.Ln2 * math.Ln2)
	numBits := int(math.Ceil(m))
	numHashes := int(math.Ceil((m / n) * math.Ln2))

	if numBits < 64 {
		numBits = 64
	}
	if numHashes < 1 {
		numHashes = 1
	}

	numWords := (numBits + 63) / 64
	return &Filter{
		bits:      make([]uint64, numWords),
		numBits:   uint64(numWords * 64),
		numHashes: uint64(numHashes),
	}
}

// Add records an identifier in the filter.
func (f *Filter) Add(identifier string) {
	h1, h2 := hash128(identifier)

	f.mu.Lock()
	defer f.mu.Unlock()

	for i := uint64(0); i < f.numHashes; i++ {
		// Double hashing: h(i) = h1 + i*h2
		pos := (h1 + i*h2) % f.numBits
		f.bits[pos/64] |= 1 << (pos % 64)
	}
}

// MaybeContains tests membership. True means the identifier might be
// registered (possible false positive); false means it definitely is not.
func (f *Filter) MaybeContains(identifier string) bool {
	h1, h2 := hash128(identifier)

	f.mu.RLock()
	defer f.mu.RUnlock()

	for i := uint64(0); i < f.numHashes; i++ {
		pos := (h1 + i*h2) % f.numBits
		if f.bits[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}
	return true
}

// hash128 computes the murmur3 128-bit hash and returns two 64-bit values.
func hash128(identifier string) (uint64, uint64) {
	h := murmur3.New128()
	h.Write([]byte(identifier))
	return h.Sum128()
}
