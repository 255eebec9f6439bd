package promo

import (
	"crypto/rand"
	"time"
)

// Clock abstracts wall-clock access so lockout and expiry arithmetic can
// be driven by a fake in tests. All timestamp comparisons in the engine
// go through a Clock; nothing caches "now".
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

// RandomSource abstracts the cryptographically secure random byte source
// used for code generation and install-identity minting.
type RandomSource interface {
	Read(p []byte) (n int, err error)
}

// SystemRandom returns the crypto/rand backed RandomSource.
func SystemRandom() RandomSource { return rand.Reader }
