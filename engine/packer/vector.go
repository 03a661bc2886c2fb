package packer

import (
	"github.com/Moddingdudes/Mirage-sub002/engine/bitstream"
)

// Vector2 is a 2D vector
type Vector2 struct {
	X, Y float32
}

// Vector3 is a 3D vector
type Vector3 struct {
	X, Y, Z float32
}

// Vector2Packer packs each axis with its own signed FloatPacker
type Vector2Packer struct {
	x, y *FloatPacker
}

// NewVector2Packer creates a packer for vectors within [-max, max] on every axis
func NewVector2Packer(max, precision Vector2) (*Vector2Packer, error) {
	x, err := NewFloatPacker(max.X, precision.X, true)
	if err != nil {
		return nil, err
	}
	y, err := NewFloatPacker(max.Y, precision.Y, true)
	if err != nil {
		return nil, err
	}
	return &Vector2Packer{x: x, y: y}, nil
}

// Bits returns the number of bits one vector occupies
func (p *Vector2Packer) Bits() int {
	return p.x.Bits() + p.y.Bits()
}

// Pack writes both axes, clamped
func (p *Vector2Packer) Pack(w *bitstream.Writer, v Vector2) {
	p.x.Pack(w, v.X)
	p.y.Pack(w, v.Y)
}

// Unpack reads one vector
func (p *Vector2Packer) Unpack(r *bitstream.Reader) (v Vector2, err error) {
	if v.X, err = p.x.Unpack(r); err != nil {
		return
	}
	v.Y, err = p.y.Unpack(r)
	return
}

// Vector3Packer packs each axis with its own signed FloatPacker
type Vector3Packer struct {
	x, y, z *FloatPacker
}

// NewVector3Packer creates a packer for vectors within [-max, max] on every axis
func NewVector3Packer(max, precision Vector3) (*Vector3Packer, error) {
	x, err := NewFloatPacker(max.X, precision.X, true)
	if err != nil {
		return nil, err
	}
	y, err := NewFloatPacker(max.Y, precision.Y, true)
	if err != nil {
		return nil, err
	}
	z, err := NewFloatPacker(max.Z, precision.Z, true)
	if err != nil {
		return nil, err
	}
	return &Vector3Packer{x: x, y: y, z: z}, nil
}

// MustNewVector3Packer is like NewVector3Packer but panics on invalid config
func MustNewVector3Packer(max, precision Vector3) *Vector3Packer {
	p, err := NewVector3Packer(max, precision)
	if err != nil {
		panic(err)
	}
	return p
}

// Bits returns the number of bits one vector occupies
func (p *Vector3Packer) Bits() int {
	return p.x.Bits() + p.y.Bits() + p.z.Bits()
}

// Pack writes all three axes, clamped
func (p *Vector3Packer) Pack(w *bitstream.Writer, v Vector3) {
	p.x.Pack(w, v.X)
	p.y.Pack(w, v.Y)
	p.z.Pack(w, v.Z)
}

// Unpack reads one vector
func (p *Vector3Packer) Unpack(r *bitstream.Reader) (v Vector3, err error) {
	if v.X, err = p.x.Unpack(r); err != nil {
		return
	}
	if v.Y, err = p.y.Unpack(r); err != nil {
		return
	}
	v.Z, err = p.z.Unpack(r)
	return
}
