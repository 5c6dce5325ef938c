package mixer

import (
	"errors"
	"io"
)

// Reader extends io.Reader, but also provides a way to reuse a Mixer with a different source.
type Reader interface {
	io.Reader
	// Reset will use the provided io.Reader and reset the Mixer's cursor to its initial value.
	Reset(source io.Reader)
}

// Writer extends io.Writer, but also provides a way to reuse a Mixer with a different target.
type Writer interface {
	io.Writer
	// Reset will use the provided io.Writer and reset the Mixer's cursor to its initial value.
	Reset(target io.Writer)
}

var errNilMixer = errors.New("cannot use a nil Mixer")

var _ Reader = (*reader)(nil)

type reader struct {
	source io.Reader
	mix    *Mixer
}

func (r *reader) Read(out []byte) (n int, err error) {
	n, err = r.source.Read(out)
	r.mix.MixInPlace(out[:n])
	return n, err
}

func (r *reader) Reset(source io.Reader) {
	r.source = source
	r.mix.Reset()
}

// NewReader constructs a new Reader that mixes all bytes read with m.
func NewReader(r io.Reader, m *Mixer) (Reader, error) {
	if m == nil {
		return nil, errNilMixer
	}
	return &reader{
		source: r,
		mix:    m,
	}, nil
}

var _ Writer = (*writer)(nil)

type writer struct {
	target io.Writer
	mix    *Mixer
}

// NewWriter constructs a new Writer that mixes all bytes written with m before passing them to target.
// The cursor advances by the full length of each Write, even if the target accepts fewer bytes.
func NewWriter(target io.Writer, m *Mixer) (Writer, error) {
	if m == nil {
		return nil, errNilMixer
	}
	return &writer{
		target: target,
		mix:    m,
	}, nil
}

func (w *writer) Write(in []byte) (n int, err error) {
	return w.target.Write(w.mix.Mix(in))
}

func (w *writer) Reset(target io.Writer) {
	w.target = target
	w.mix.Reset()
}
