package bitstream

import (
	"math"

	"github.com/pkg/errors"
)

// Reader unpacks values written by Writer, least significant bit first
type Reader struct {
	data   []byte
	bitLen int
	bitPos int
}

// NewReader creates a reader over all bits of data
func NewReader(data []byte) *Reader {
	r := &Reader{}
	r.Reset(data)
	return r
}

// NewReaderBits creates a reader over the first bitLen bits of data
func NewReaderBits(data []byte, bitLen int) *Reader {
	if bitLen > len(data)<<3 {
		bitLen = len(data) << 3
	}
	return &Reader{data: data, bitLen: bitLen}
}

// Reset rewinds the reader onto a new backing segment
func (r *Reader) Reset(data []byte) {
	r.data = data
	r.bitLen = len(data) << 3
	r.bitPos = 0
}

// BitPosition returns the number of bits consumed
func (r *Reader) BitPosition() int {
	return r.bitPos
}

// BitLength returns the number of readable bits
func (r *Reader) BitLength() int {
	return r.bitLen
}

// Remaining returns the number of bits not read yet
func (r *Reader) Remaining() int {
	return r.bitLen - r.bitPos
}

// CanRead checks if the next bits can be read
func (r *Reader) CanRead(bits int) bool {
	return bits >= 0 && r.bitPos+bits <= r.bitLen
}

// Read consumes and returns the next bits
func (r *Reader) Read(bits int) (uint64, error) {
	if bits < 0 || bits > 64 {
		return 0, errors.Wrapf(ErrInvalidBitCount, "read %d bits", bits)
	}
	if r.bitPos+bits > r.bitLen {
		return 0, &OutOfBoundsError{Position: r.bitPos, Requested: bits, Length: r.bitLen}
	}

	var value uint64
	var shift uint
	for bits > 0 {
		byteIndex := r.bitPos >> 3
		offset := uint(r.bitPos & 7)
		n := 8 - int(offset)
		if bits < n {
			n = bits
		}
		chunk := uint64(r.data[byteIndex]>>offset) & ((uint64(1) << uint(n)) - 1)
		value |= chunk << shift
		shift += uint(n)
		bits -= n
		r.bitPos += n
	}
	return value, nil
}

// ReadBool reads one bit
func (r *Reader) ReadBool() (bool, error) {
	v, err := r.Read(1)
	return v != 0, err
}

// ReadUint8 reads 8 bits
func (r *Reader) ReadUint8() (uint8, error) {
	v, err := r.Read(8)
	return uint8(v), err
}

// ReadUint16 reads 16 bits
func (r *Reader) ReadUint16() (uint16, error) {
	v, err := r.Read(16)
	return uint16(v), err
}

// ReadUint32 reads 32 bits
func (r *Reader) ReadUint32() (uint32, error) {
	v, err := r.Read(32)
	return uint32(v), err
}

// ReadUint64 reads 64 bits
func (r *Reader) ReadUint64() (uint64, error) {
	return r.Read(64)
}

// ReadFloat32 reads an IEEE-754 float32
func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.Read(32)
	return math.Float32frombits(uint32(v)), err
}

// ReadFloat64 reads an IEEE-754 float64
func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.Read(64)
	return math.Float64frombits(v), err
}

// ReadBytes reads n raw bytes. When the reader is byte aligned the result shares memory with the backing segment.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || !r.CanRead(n<<3) {
		return nil, &OutOfBoundsError{Position: r.bitPos, Requested: n << 3, Length: r.bitLen}
	}
	if r.bitPos&7 == 0 {
		start := r.bitPos >> 3
		r.bitPos += n << 3
		return r.data[start : start+n], nil
	}
	b := make([]byte, n)
	for i := range b {
		v, err := r.Read(8)
		if err != nil {
			return nil, err
		}
		b[i] = byte(v)
	}
	return b, nil
}

// SkipToByte skips the padding bits up to the next byte boundary
func (r *Reader) SkipToByte() {
	if rem := r.bitPos & 7; rem != 0 {
		r.bitPos += 8 - rem
		if r.bitPos > r.bitLen {
			r.bitPos = r.bitLen
		}
	}
}
