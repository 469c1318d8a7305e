// Package random provides Random implementations.
package random

import (
	"crypto/rand"
	"encoding/hex"
	"sync"

	"github.com/artpar/quotagate/ports"
)

// Real uses crypto/rand for secure randomness. Secret keys come from here.
type Real struct{}

// Bytes generates n cryptographically secure random bytes.
func (Real) Bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// Hex generates n random bytes as 2n lowercase hex characters.
func (r Real) Hex(n int) (string, error) {
	return hexOf(r, n)
}

// Ensure interface compliance.
var _ ports.Random = Real{}

// Fake provides deterministic randomness for testing.
type Fake struct {
	mu      sync.Mutex
	counter int
	values  [][]byte // preset values returned first
	index   int
}

// NewFake creates a fake random source.
func NewFake() *Fake {
	return &Fake{}
}

// WithValues sets preset byte values to return.
func (f *Fake) WithValues(values ...[]byte) *Fake {
	f.mu.Lock()
	f.values = values
	f.index = 0
	f.mu.Unlock()
	return f
}

// Bytes returns preset bytes or deterministic bytes based on a counter.
// Each call yields a different sequence.
func (f *Fake) Bytes(n int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b := make([]byte, n)
	if f.index < len(f.values) {
		copy(b, f.values[f.index])
		f.index++
		return b, nil
	}

	f.counter++
	for i := range b {
		b[i] = byte((f.counter*31 + i) % 256)
	}
	return b, nil
}

// Hex returns a deterministic hex string of 2n characters.
func (f *Fake) Hex(n int) (string, error) {
	return hexOf(f, n)
}

// Ensure interface compliance.
var _ ports.Random = (*Fake)(nil)

func hexOf(r interface{ Bytes(int) ([]byte, error) }, n int) (string, error) {
	b, err := r.Bytes(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
