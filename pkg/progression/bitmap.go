// Package progression holds the pure progress domain: completion bitmaps,
// subject structure trees, unlock evaluation and XP reward pricing. Nothing
// in here touches the network or a store, so every rule is unit-testable in
// isolation.
package progression

import (
	"encoding/base64"
	"fmt"
	"math/bits"
)

// Bitmap is the dense completion state for one (learner, subject) pair:
// one bit per lesson, addressed by the lesson's assigned bit position.
// Bit i lives in byte i/8 at the most significant end of the byte — the
// same addressing Redis uses for SETBIT/GETBIT, so raw bytes move between
// the cache and durable snapshots without translation.
type Bitmap []byte

// Check reports whether bit pos is set. Positions beyond the backing
// slice are unset by definition.
func (b Bitmap) Check(pos int) bool {
	if pos < 0 {
		return false
	}
	blk := pos / 8
	if blk >= len(b) {
		return false
	}
	return b[blk]&bitMask(pos) != 0
}

// Set turns bit pos on, growing the backing slice as needed, and reports
// whether the bit was already set. Bits are only ever set, never cleared:
// completion is monotonic.
func (b *Bitmap) Set(pos int) bool {
	if pos < 0 {
		return false
	}
	blk := pos / 8
	for blk >= len(*b) {
		*b = append(*b, 0)
	}
	mask := bitMask(pos)
	was := (*b)[blk]&mask != 0
	(*b)[blk] |= mask
	return was
}

// Count returns the number of set bits.
func (b Bitmap) Count() int {
	n := 0
	for _, v := range b {
		n += bits.OnesCount8(v)
	}
	return n
}

func (b Bitmap) Clone() Bitmap {
	if len(b) == 0 {
		return Bitmap{}
	}
	out := make(Bitmap, len(b))
	copy(out, b)
	return out
}

// EncodeBase64 renders the bitmap in the durable snapshot format.
func (b Bitmap) EncodeBase64() string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeBitmap parses a base64 snapshot value. An empty string is a valid
// all-zero bitmap.
func DecodeBitmap(s string) (Bitmap, error) {
	if s == "" {
		return Bitmap{}, nil
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode bitmap: %w", err)
	}
	return Bitmap(raw), nil
}

func bitMask(pos int) byte {
	return 1 << (7 - uint(pos%8))
}
