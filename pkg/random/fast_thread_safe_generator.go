// Package random provides the runtime's one random-number source: a
// fast, non-cryptographic generator safe for concurrent use without
// external locking.
package random

import (
	crypto_rand "crypto/rand"
	"fmt"
	"math/rand/v2"
)

func mustCryptoRandRead(p []byte) (int, error) {
	n, err := crypto_rand.Read(p)
	if err != nil {
		panic(fmt.Sprintf("Failed to obtain random data: %s", err))
	}
	return n, nil
}

type fastThreadSafeGenerator struct{}

func (fastThreadSafeGenerator) Float64() float64 {
	return rand.Float64()
}

func (fastThreadSafeGenerator) Int64N(n int64) int64 {
	return rand.Int64N(n)
}

func (fastThreadSafeGenerator) IntN(n int) int {
	return rand.IntN(n)
}

func (fastThreadSafeGenerator) Read(p []byte) (int, error) {
	return mustCryptoRandRead(p)
}

func (fastThreadSafeGenerator) Shuffle(n int, swap func(i, j int)) {
	rand.Shuffle(n, swap)
}

func (fastThreadSafeGenerator) Uint32() uint32 {
	return rand.Uint32()
}

func (fastThreadSafeGenerator) Uint64() uint64 {
	return rand.Uint64()
}

// FastThreadSafeGenerator is safe to call from multiple goroutines
// without additional locking and is not suitable for cryptographic
// purposes. It is the jitter source for the replication transport's
// reconnect backoff and the stream view's hole-fill backoff.
var FastThreadSafeGenerator = fastThreadSafeGenerator{}
