package mixer

import (
	"crypto/sha256"
	"strconv"
	"time"
)

const (
	// Window is the wall-clock interval that pins a keystream.
	Window = 5 * time.Minute
	// KeySizeMB is the base keystream size, before the window-dependent extra length.
	KeySizeMB = 5

	windowSeconds = int64(Window / time.Second)
	maxExtraLen   = 3000
)

// WindowIndex returns the index of the Window containing t.
func WindowIndex(t time.Time) int64 {
	return t.Unix() / windowSeconds
}

// KeyLen returns the length of the key bytes derived for the given window.
// The target length varies per window, and is aligned down to a whole number of SHA-256 blocks.
func KeyLen(window int64) int {
	target := KeySizeMB*1024*1024 + int(window%maxExtraLen)
	return target / sha256.Size * sha256.Size
}

// Mixer applies a keystream to bytes in the order they're given.
// A Mixer is not safe for concurrent use, each direction of a stream needs its own.
type Mixer struct {
	window int64
	key    []byte
	init   int
	pos    int
}

// New derives a Mixer from the seed for the window containing now.
// The seed is usually a BaseKey, optionally followed by a direction suffix.
func New(seed []byte, now time.Time) *Mixer {
	window := WindowIndex(now)
	return newMixer(window, deriveKey(seed, window))
}

func newMixer(window int64, key []byte) *Mixer {
	start := int(window % int64(len(key)))
	return &Mixer{
		window: window,
		key:    key,
		init:   start,
		pos:    start,
	}
}

// deriveKey concatenates SHA-256("<i>" + "S<window><seed><window>E" + "<i>") for each block i.
func deriveKey(seed []byte, window int64) []byte {
	w := strconv.FormatInt(window, 10)
	temp := make([]byte, 0, len(seed)+2*len(w)+2)
	temp = append(temp, 'S')
	temp = append(temp, w...)
	temp = append(temp, seed...)
	temp = append(temp, w...)
	temp = append(temp, 'E')

	length := KeyLen(window)
	key := make([]byte, 0, length)
	h := sha256.New()
	var counter []byte
	for i := 0; len(key) < length; i++ {
		counter = strconv.AppendInt(counter[:0], int64(i), 10)
		h.Reset()
		h.Write(counter)
		h.Write(temp)
		h.Write(counter)
		key = h.Sum(key)
	}
	return key
}

// Mix returns a mixed copy of p, advancing the cursor by len(p).
func (m *Mixer) Mix(p []byte) []byte {
	out := make([]byte, len(p))
	copy(out, p)
	m.MixInPlace(out)
	return out
}

// MixInPlace mixes p in place, advancing the cursor by len(p).
func (m *Mixer) MixInPlace(p []byte) {
	for i := range p {
		p[i] ^= m.key[m.pos]
		m.pos++
		if m.pos == len(m.key) {
			m.pos = 0
		}
	}
}

// Reset moves the cursor back to where it started.
func (m *Mixer) Reset() {
	m.pos = m.init
}

// Clone returns a Mixer in the same state.
// The key bytes are shared, since they're never modified.
func (m *Mixer) Clone() *Mixer {
	c := *m
	return &c
}

func (m *Mixer) Window() int64 {
	return m.window
}

func (m *Mixer) Len() int {
	return len(m.key)
}

// Pos returns the current cursor position within the key.
func (m *Mixer) Pos() int {
	return m.pos
}
