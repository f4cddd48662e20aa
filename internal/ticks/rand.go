// Package ticks implements the deterministic RNG and the two synthetic
// tick producers (prediction process, lagged market process) described in
// spec.md §4.1.
package ticks

import (
	"crypto/sha256"
	"encoding/binary"
	"math"

	"golang.org/x/crypto/chacha20"
)

// Rand is a portable, seedable stream-cipher-based PRNG. Identical seed and
// stream label always produce the identical sequence of samples on any
// platform, which is the determinism contract spec.md §4.1 requires.
//
// It keys a ChaCha20 keystream off sha256(seed || label) and consumes it in
// 8-byte words, which avoids depending on math/rand's algorithm (documented
// as allowed to change between Go releases).
type Rand struct {
	cipher  *chacha20.Cipher
	buf     [64]byte
	zero    [64]byte
	offset  int
	haveGauss bool
	gauss   float64
}

// NewRand derives an independent stream from seed, domain-separated by
// label so two streams drawn from the same run seed (e.g. "prediction" and
// "market-noise") never collide.
func NewRand(seed int64, label string) *Rand {
	h := sha256.New()
	var seedBytes [8]byte
	binary.LittleEndian.PutUint64(seedBytes[:], uint64(seed))
	h.Write(seedBytes[:])
	h.Write([]byte(label))
	key := h.Sum(nil) // 32 bytes, exactly chacha20.KeySize

	nonce := make([]byte, chacha20.NonceSize) // all-zero nonce: key is unique per stream
	c, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		// key/nonce are fixed-size local slices; only a library bug could trigger this.
		panic("ticks: chacha20 cipher construction failed: " + err.Error())
	}
	r := &Rand{cipher: c}
	r.offset = len(r.buf) // force a refill on first use
	return r
}

func (r *Rand) refill() {
	r.cipher.XORKeyStream(r.buf[:], r.zero[:])
	r.offset = 0
}

// Uint64 returns the next raw 64-bit keystream word.
func (r *Rand) Uint64() uint64 {
	if r.offset+8 > len(r.buf) {
		r.refill()
	}
	v := binary.LittleEndian.Uint64(r.buf[r.offset : r.offset+8])
	r.offset += 8
	return v
}

// Float64 returns a uniform sample in [0, 1).
func (r *Rand) Float64() float64 {
	// top 53 bits give a uniform double, same construction math/rand uses.
	return float64(r.Uint64()>>11) / (1 << 53)
}

// NormFloat64 returns a standard-normal sample via Box-Muller, cached in
// pairs so every other call is free.
func (r *Rand) NormFloat64() float64 {
	if r.haveGauss {
		r.haveGauss = false
		return r.gauss
	}
	var u1, u2 float64
	for u1 == 0 {
		u1 = r.Float64()
	}
	u2 = r.Float64()
	mag := math.Sqrt(-2 * math.Log(u1))
	z0 := mag * math.Cos(2*math.Pi*u2)
	z1 := mag * math.Sin(2*math.Pi*u2)
	r.gauss = z1
	r.haveGauss = true
	return z0
}
