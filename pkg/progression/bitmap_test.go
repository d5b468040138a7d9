package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitmapSetAndCheck(t *testing.T) {
	var bm Bitmap

	assert.False(t, bm.Check(0))
	assert.False(t, bm.Check(9000))

	was := bm.Set(0)
	assert.False(t, was)
	assert.True(t, bm.Check(0))

	was = bm.Set(0)
	assert.True(t, was, "second set of the same bit must report it was already set")

	was = bm.Set(13)
	assert.False(t, was)
	assert.True(t, bm.Check(13))
	assert.False(t, bm.Check(12))
	assert.False(t, bm.Check(14))
}

func TestBitmapLayoutMatchesRedisSetbit(t *testing.T) {
	// Redis SETBIT addresses bit 0 as the most significant bit of the
	// first byte. Raw bytes coming back from the cache must read the same
	// way here.
	var bm Bitmap
	bm.Set(0)
	require.Len(t, bm, 1)
	assert.Equal(t, byte(0x80), bm[0])

	bm.Set(7)
	assert.Equal(t, byte(0x81), bm[0])

	bm.Set(8)
	require.Len(t, bm, 2)
	assert.Equal(t, byte(0x80), bm[1])
}

func TestBitmapGrowth(t *testing.T) {
	var bm Bitmap
	bm.Set(100)

	require.Len(t, bm, 13)
	assert.True(t, bm.Check(100))
	assert.False(t, bm.Check(99))
	assert.Equal(t, 1, bm.Count())
}

func TestBitmapCount(t *testing.T) {
	var bm Bitmap
	assert.Equal(t, 0, bm.Count())

	for _, pos := range []int{0, 1, 7, 8, 63, 64} {
		bm.Set(pos)
	}
	assert.Equal(t, 6, bm.Count())

	bm.Set(0)
	assert.Equal(t, 6, bm.Count(), "setting an existing bit must not change the count")
}

func TestBitmapEncodeDecode(t *testing.T) {
	var bm Bitmap
	bm.Set(2)
	bm.Set(17)

	decoded, err := DecodeBitmap(bm.EncodeBase64())
	require.NoError(t, err)
	assert.Equal(t, bm, decoded)
	assert.True(t, decoded.Check(2))
	assert.True(t, decoded.Check(17))

	empty, err := DecodeBitmap("")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Count())

	_, err = DecodeBitmap("not base64!!!")
	assert.Error(t, err)
}

func TestBitmapClone(t *testing.T) {
	var bm Bitmap
	bm.Set(3)

	cp := bm.Clone()
	cp.Set(4)

	assert.True(t, cp.Check(3))
	assert.False(t, bm.Check(4), "mutating a clone must not touch the original")
}
