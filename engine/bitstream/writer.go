package bitstream

import (
	"math"
	"sync"

	"github.com/pkg/errors"
)

const _MIN_WRITER_CAP = 64

var writerPool = sync.Pool{
	New: func() interface{} {
		return NewWriter(_MIN_WRITER_CAP)
	},
}

// GetWriter takes an empty scratch writer from the pool
func GetWriter() *Writer {
	w := writerPool.Get().(*Writer)
	w.Reset()
	return w
}

// PutWriter returns a writer to the pool. The writer must not be used afterwards.
func PutWriter(w *Writer) {
	writerPool.Put(w)
}

// Writer packs values bit by bit, least significant bit first, into a growable byte buffer
type Writer struct {
	buf    []byte
	bitPos int
}

// NewWriter creates a writer with the initial byte capacity
func NewWriter(capacity int) *Writer {
	return &Writer{
		buf: make([]byte, 0, capacity),
	}
}

// Reset rewinds the writer to empty, keeping the allocated buffer
func (w *Writer) Reset() {
	for i := range w.buf {
		w.buf[i] = 0
	}
	w.buf = w.buf[:0]
	w.bitPos = 0
}

// BitPosition returns the number of bits written
func (w *Writer) BitPosition() int {
	return w.bitPos
}

// ByteLength returns the number of bytes needed to hold all written bits
func (w *Writer) ByteLength() int {
	return (w.bitPos + 7) >> 3
}

// Bytes returns the written bytes. The last byte is zero padded.
// The returned slice is only valid until the next write or Reset.
func (w *Writer) Bytes() []byte {
	return w.buf[:w.ByteLength()]
}

// CopyBytes returns a copy of the written bytes
func (w *Writer) CopyBytes() []byte {
	b := make([]byte, w.ByteLength())
	copy(b, w.buf)
	return b
}

func (w *Writer) grow(bits int) {
	need := (w.bitPos + bits + 7) >> 3
	oldLen := len(w.buf)
	if need <= oldLen {
		return
	}
	if need <= cap(w.buf) {
		w.buf = w.buf[:need]
		for i := oldLen; i < need; i++ {
			w.buf[i] = 0
		}
		return
	}

	newCap := cap(w.buf) * 2
	if newCap < need {
		newCap = need
	}
	if newCap < _MIN_WRITER_CAP {
		newCap = _MIN_WRITER_CAP
	}
	buf := make([]byte, need, newCap)
	copy(buf, w.buf)
	w.buf = buf
}

// Write appends the low bits of value to the buffer
func (w *Writer) Write(value uint64, bits int) {
	if bits < 0 || bits > 64 {
		panic(errors.Wrapf(ErrInvalidBitCount, "write %d bits", bits))
	}
	if bits == 0 {
		return
	}
	if bits < 64 {
		value &= (uint64(1) << uint(bits)) - 1
	}

	w.grow(bits)
	for bits > 0 {
		byteIndex := w.bitPos >> 3
		offset := uint(w.bitPos & 7)
		n := 8 - int(offset)
		if bits < n {
			n = bits
		}
		w.buf[byteIndex] |= byte(value << offset)
		value >>= uint(n)
		bits -= n
		w.bitPos += n
	}
}

// WriteBool writes one bit
func (w *Writer) WriteBool(b bool) {
	if b {
		w.Write(1, 1)
	} else {
		w.Write(0, 1)
	}
}

// WriteUint8 writes 8 bits
func (w *Writer) WriteUint8(v uint8) {
	w.Write(uint64(v), 8)
}

// WriteUint16 writes 16 bits
func (w *Writer) WriteUint16(v uint16) {
	w.Write(uint64(v), 16)
}

// WriteUint32 writes 32 bits
func (w *Writer) WriteUint32(v uint32) {
	w.Write(uint64(v), 32)
}

// WriteUint64 writes 64 bits
func (w *Writer) WriteUint64(v uint64) {
	w.Write(v, 64)
}

// WriteFloat32 writes the IEEE-754 bits of f
func (w *Writer) WriteFloat32(f float32) {
	w.Write(uint64(math.Float32bits(f)), 32)
}

// WriteFloat64 writes the IEEE-754 bits of f
func (w *Writer) WriteFloat64(f float64) {
	w.Write(math.Float64bits(f), 64)
}

// WriteBytes appends raw bytes, fast path when the writer is byte aligned
func (w *Writer) WriteBytes(b []byte) {
	if w.bitPos&7 == 0 {
		w.buf = append(w.buf[:w.ByteLength()], b...)
		w.bitPos += len(b) << 3
		return
	}
	for _, c := range b {
		w.Write(uint64(c), 8)
	}
}

// PadToByte skips to the next byte boundary, leaving zero bits
func (w *Writer) PadToByte() {
	rem := w.bitPos & 7
	if rem != 0 {
		w.Write(0, 8-rem)
	}
}

// WriteFrom appends every bit written to src
func (w *Writer) WriteFrom(src *Writer) {
	full := src.bitPos >> 3
	if w.bitPos&7 == 0 {
		w.WriteBytes(src.buf[:full])
	} else {
		for i := 0; i < full; i++ {
			w.Write(uint64(src.buf[i]), 8)
		}
	}
	if rem := src.bitPos & 7; rem != 0 {
		w.Write(uint64(src.buf[full]), rem)
	}
}
