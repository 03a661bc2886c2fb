package packer

import (
	"math"

	"github.com/Moddingdudes/Mirage-sub002/engine/bitstream"
	"github.com/Moddingdudes/Mirage-sub002/engine/consts"
	"github.com/pkg/errors"
)

const quaternionIndexBits = 2

// Quaternion is a rotation stored as X, Y, Z, W
type Quaternion struct {
	X, Y, Z, W float32
}

// IdentityQuaternion is the no-rotation quaternion
var IdentityQuaternion = Quaternion{0, 0, 0, 1}

func (q Quaternion) components() [4]float64 {
	return [4]float64{float64(q.X), float64(q.Y), float64(q.Z), float64(q.W)}
}

func quaternionFrom(c [4]float64) Quaternion {
	return Quaternion{float32(c[0]), float32(c[1]), float32(c[2]), float32(c[3])}
}

// Dot returns the 4D dot product of q and o
func (q Quaternion) Dot(o Quaternion) float32 {
	return q.X*o.X + q.Y*o.Y + q.Z*o.Z + q.W*o.W
}

// Normalized returns q scaled to unit length, or identity for a zero quaternion
func (q Quaternion) Normalized() Quaternion {
	c := q.components()
	l := math.Sqrt(c[0]*c[0] + c[1]*c[1] + c[2]*c[2] + c[3]*c[3])
	if l == 0 || math.IsNaN(l) || math.IsInf(l, 0) {
		return IdentityQuaternion
	}
	for i := range c {
		c[i] /= l
	}
	return quaternionFrom(c)
}

// QuaternionPacker packs unit rotations with the smallest-three scheme
//
// The largest component is dropped and rebuilt from unit length on unpack. The rotation is negated
// first when needed so the dropped component is never negative.
type QuaternionPacker struct {
	bitsPerElement int
	element        *FloatPacker
}

// NewQuaternionPacker creates a packer using bitsPerElement bits for each of the three kept components
func NewQuaternionPacker(bitsPerElement int) (*QuaternionPacker, error) {
	if bitsPerElement < 2 || bitsPerElement > maxFloatPackerBits {
		return nil, errors.Wrapf(ErrInvalidPackerConfig, "quaternion bits per element must be within 2..%d, got %d", maxFloatPackerBits, bitsPerElement)
	}
	element, err := NewFloatPackerBits(float32(1/math.Sqrt2), bitsPerElement, true)
	if err != nil {
		return nil, err
	}
	return &QuaternionPacker{
		bitsPerElement: bitsPerElement,
		element:        element,
	}, nil
}

// MustNewQuaternionPacker is like NewQuaternionPacker but panics on invalid config
func MustNewQuaternionPacker(bitsPerElement int) *QuaternionPacker {
	p, err := NewQuaternionPacker(bitsPerElement)
	if err != nil {
		panic(err)
	}
	return p
}

// DefaultQuaternionPacker uses consts.DEFAULT_QUATERNION_BITS per element, 29 bits in total
var DefaultQuaternionPacker = MustNewQuaternionPacker(consts.DEFAULT_QUATERNION_BITS)

// Bits returns the number of bits one rotation occupies
func (p *QuaternionPacker) Bits() int {
	return quaternionIndexBits + 3*p.bitsPerElement
}

// Pack writes the index of the largest component followed by the other three
func (p *QuaternionPacker) Pack(w *bitstream.Writer, q Quaternion) {
	c := q.Normalized().components()
	largest := 0
	for i := 1; i < 4; i++ {
		if math.Abs(c[i]) > math.Abs(c[largest]) {
			largest = i
		}
	}
	if c[largest] < 0 {
		for i := range c {
			c[i] = -c[i]
		}
	}

	w.Write(uint64(largest), quaternionIndexBits)
	for i := 0; i < 4; i++ {
		if i != largest {
			p.element.Pack(w, float32(c[i]))
		}
	}
}

// Unpack reads one rotation
func (p *QuaternionPacker) Unpack(r *bitstream.Reader) (Quaternion, error) {
	index, err := r.Read(quaternionIndexBits)
	if err != nil {
		return Quaternion{}, err
	}
	largest := int(index)

	var c [4]float64
	var sum float64
	for i := 0; i < 4; i++ {
		if i == largest {
			continue
		}
		v, err := p.element.Unpack(r)
		if err != nil {
			return Quaternion{}, err
		}
		c[i] = float64(v)
		sum += c[i] * c[i]
	}
	c[largest] = math.Sqrt(math.Max(0, 1-sum))
	return quaternionFrom(c), nil
}
