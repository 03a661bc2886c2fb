package packer

import (
	"math"

	"github.com/Moddingdudes/Mirage-sub002/engine/bitstream"
	"github.com/pkg/errors"
)

const maxFloatPackerBits = 32

// FloatPacker quantizes floats within [-max, max] (signed) or [0, max] into a fixed number of bits
//
// Signed values are offset so that zero sits on an exact code.
type FloatPacker struct {
	max       float64
	signed    bool
	bits      int
	maxInt    uint64 // largest magnitude code
	precision float64
}

// NewFloatPacker creates a FloatPacker that keeps unpacked values within precision of the packed value
func NewFloatPacker(max, precision float32, signed bool) (*FloatPacker, error) {
	if !(max > 0) || math.IsInf(float64(max), 0) {
		return nil, errors.Wrapf(ErrInvalidPackerConfig, "float packer max must be positive, got %v", max)
	}
	if !(precision > 0) {
		return nil, errors.Wrapf(ErrInvalidPackerConfig, "float packer precision must be positive, got %v", precision)
	}

	valueRange := float64(max)
	if signed {
		valueRange *= 2
	}
	bits := int(math.Ceil(math.Log2(valueRange / float64(precision))))
	if bits <= 0 {
		return nil, errors.Wrapf(ErrInvalidPackerConfig, "float packer (max=%v, precision=%v) needs %d bits", max, precision, bits)
	}
	if bits > maxFloatPackerBits {
		return nil, errors.Wrapf(ErrInvalidPackerConfig, "float packer (max=%v, precision=%v) needs %d bits, more than %d", max, precision, bits, maxFloatPackerBits)
	}
	return newFloatPacker(float64(max), bits, signed), nil
}

// NewFloatPackerBits creates a FloatPacker from a bit budget instead of a precision
func NewFloatPackerBits(max float32, bits int, signed bool) (*FloatPacker, error) {
	if !(max > 0) || math.IsInf(float64(max), 0) {
		return nil, errors.Wrapf(ErrInvalidPackerConfig, "float packer max must be positive, got %v", max)
	}
	if bits <= 0 || bits > maxFloatPackerBits {
		return nil, errors.Wrapf(ErrInvalidPackerConfig, "float packer bits must be within 1..%d, got %d", maxFloatPackerBits, bits)
	}
	return newFloatPacker(float64(max), bits, signed), nil
}

// MustNewFloatPacker is like NewFloatPacker but panics on invalid config
func MustNewFloatPacker(max, precision float32, signed bool) *FloatPacker {
	p, err := NewFloatPacker(max, precision, signed)
	if err != nil {
		panic(err)
	}
	return p
}

func newFloatPacker(max float64, bits int, signed bool) *FloatPacker {
	if signed && bits < 2 {
		// one signed bit cannot hold zero and both signs
		bits = 2
	}
	p := &FloatPacker{
		max:    max,
		signed: signed,
		bits:   bits,
	}
	if signed {
		p.maxInt = (uint64(1) << uint(bits-1)) - 1
	} else {
		p.maxInt = (uint64(1) << uint(bits)) - 1
	}
	p.precision = max / float64(p.maxInt) / 2
	return p
}

// Bits returns the number of bits one value occupies
func (p *FloatPacker) Bits() int {
	return p.bits
}

// Max returns the largest representable magnitude
func (p *FloatPacker) Max() float32 {
	return float32(p.max)
}

// Signed returns if negative values are representable
func (p *FloatPacker) Signed() bool {
	return p.signed
}

// Precision returns the worst-case error of a packed value within range
func (p *FloatPacker) Precision() float32 {
	return float32(p.precision)
}

func (p *FloatPacker) clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v > p.max {
		return p.max
	}
	min := 0.0
	if p.signed {
		min = -p.max
	}
	if v < min {
		return min
	}
	return v
}

// Quantize maps a value to its integer code, clamping it into range first
func (p *FloatPacker) Quantize(v float32) uint64 {
	return p.quantize(p.clamp(float64(v)))
}

func (p *FloatPacker) quantize(v float64) uint64 {
	q := math.Round(v / p.max * float64(p.maxInt))
	if p.signed {
		return uint64(int64(q) + int64(p.maxInt))
	}
	return uint64(q)
}

// Dequantize maps an integer code back to a value
func (p *FloatPacker) Dequantize(code uint64) float32 {
	var q float64
	if p.signed {
		q = float64(int64(code) - int64(p.maxInt))
	} else {
		q = float64(code)
	}
	return float32(p.clamp(q / float64(p.maxInt) * p.max))
}

// Pack clamps v into range and writes its code
func (p *FloatPacker) Pack(w *bitstream.Writer, v float32) {
	w.Write(p.Quantize(v), p.bits)
}

// PackNoClamp writes the code of v, which the caller guarantees to be in range
func (p *FloatPacker) PackNoClamp(w *bitstream.Writer, v float32) {
	w.Write(p.quantize(float64(v)), p.bits)
}

// Unpack reads one packed value
func (p *FloatPacker) Unpack(r *bitstream.Reader) (float32, error) {
	code, err := r.Read(p.bits)
	if err != nil {
		return 0, err
	}
	return p.Dequantize(code), nil
}
