package mixer

import (
	"bytes"
	"crypto/sha256"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testSeed = []byte("0123456789abcdef0123456789abcdef")
	testTime = time.Unix(1_700_000_000, 0)
)

func TestWindowIndex(t *testing.T) {
	assert.Equal(t, int64(0), WindowIndex(time.Unix(299, 0)))
	assert.Equal(t, int64(1), WindowIndex(time.Unix(300, 0)))
	assert.Equal(t, int64(5666666), WindowIndex(testTime))
}

func TestKeyLen(t *testing.T) {
	assert.Equal(t, 5*1024*1024, KeyLen(0))
	assert.Equal(t, 5*1024*1024+32, KeyLen(32))
	assert.Equal(t, 5*1024*1024+32, KeyLen(63))
	assert.Equal(t, 5*1024*1024, KeyLen(3000))
	assert.Equal(t, 5245536, KeyLen(5666666))
}

func TestNew(t *testing.T) {
	m := New(testSeed, testTime)
	window := WindowIndex(testTime)
	assert.Equal(t, window, m.Window())
	assert.Equal(t, KeyLen(window), m.Len())
	assert.Equal(t, int(window%int64(m.Len())), m.Pos())

	w := strconv.FormatInt(window, 10)
	temp := "S" + w + string(testSeed) + w + "E"
	first := sha256.Sum256([]byte("0" + temp + "0"))
	second := sha256.Sum256([]byte("1" + temp + "1"))
	assert.Equal(t, first[:], m.key[:32])
	assert.Equal(t, second[:], m.key[32:64])
}

func TestMix_SelfInverse(t *testing.T) {
	data := []byte("How wonderful life is while you're in the world")
	m := New(testSeed, testTime)
	start := m.Clone()

	mixed := m.Mix(data)
	assert.Len(t, mixed, len(data))
	assert.NotEqual(t, data, mixed)
	assert.Equal(t, start.Pos()+len(data), m.Pos())

	assert.Equal(t, data, start.Mix(mixed))

	m.Reset()
	assert.Equal(t, data, m.Mix(mixed))
}

func TestMix_ChunkingDoesNotMatter(t *testing.T) {
	data := bytes.Repeat([]byte("abcdefg"), 100)
	whole := New(testSeed, testTime)
	chunked := whole.Clone()

	expected := whole.Mix(data)
	var got []byte
	for i := 0; i < len(data); i += 13 {
		end := min(i+13, len(data))
		got = append(got, chunked.Mix(data[i:end])...)
	}
	assert.Equal(t, expected, got)
}

func TestMix_ZerosRevealKey(t *testing.T) {
	m := New(testSeed, testTime)
	start := m.Pos()
	out := m.Mix(make([]byte, m.Len()))

	expected := append(append([]byte{}, m.key[start:]...), m.key[:start]...)
	assert.True(t, bytes.Equal(expected, out), "mixing zeros should reproduce the key from the initial cursor")
	assert.Equal(t, start, m.Pos(), "cursor should wrap to where it started")
}

func TestMixInPlace(t *testing.T) {
	data := []byte("in place")
	a := New(testSeed, testTime)
	b := a.Clone()

	buf := append([]byte{}, data...)
	a.MixInPlace(buf)
	assert.Equal(t, b.Mix(data), buf)
}

func TestNew_Deterministic(t *testing.T) {
	a := New(testSeed, testTime)
	b := New(testSeed, testTime.Add(time.Second))
	require.Equal(t, a.Window(), b.Window())
	assert.Equal(t, a.Pos(), b.Pos())
	assert.True(t, bytes.Equal(a.key, b.key))

	suffixed := New(append(append([]byte{}, testSeed...), DestSuffix...), testTime)
	assert.False(t, bytes.Equal(a.key[:64], suffixed.key[:64]))

	later := New(testSeed, testTime.Add(Window))
	assert.Equal(t, a.Window()+1, later.Window())
	assert.False(t, bytes.Equal(a.key[:64], later.key[:64]))
}
