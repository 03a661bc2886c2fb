package packer

import (
	"math"
	"math/bits"

	"github.com/Moddingdudes/Mirage-sub002/engine/bitstream"
	"github.com/pkg/errors"
)

// VarIntBlocksPacker writes unsigned integers as blocks of blockSize payload bits, each followed by a continuation bit
type VarIntBlocksPacker struct {
	blockSize int
	mask      uint64
}

// NewVarIntBlocksPacker creates a block packer, blockSize must be within 1..63
func NewVarIntBlocksPacker(blockSize int) (*VarIntBlocksPacker, error) {
	if blockSize <= 0 || blockSize >= 64 {
		return nil, errors.Wrapf(ErrInvalidPackerConfig, "block size must be within 1..63, got %d", blockSize)
	}
	return &VarIntBlocksPacker{
		blockSize: blockSize,
		mask:      (uint64(1) << uint(blockSize)) - 1,
	}, nil
}

// MustNewVarIntBlocksPacker is like NewVarIntBlocksPacker but panics on invalid config
func MustNewVarIntBlocksPacker(blockSize int) *VarIntBlocksPacker {
	p, err := NewVarIntBlocksPacker(blockSize)
	if err != nil {
		panic(err)
	}
	return p
}

// BlockSize returns the payload bits per block
func (p *VarIntBlocksPacker) BlockSize() int {
	return p.blockSize
}

// BitCount returns the number of bits v occupies when packed
func (p *VarIntBlocksPacker) BitCount(v uint64) int {
	n := bits.Len64(v)
	blocks := (n + p.blockSize - 1) / p.blockSize
	if blocks == 0 {
		blocks = 1
	}
	return blocks * (p.blockSize + 1)
}

// PackUint64 writes v in as many blocks as needed
func (p *VarIntBlocksPacker) PackUint64(w *bitstream.Writer, v uint64) {
	for {
		w.Write(v&p.mask, p.blockSize)
		v >>= uint(p.blockSize)
		if v == 0 {
			w.WriteBool(false)
			return
		}
		w.WriteBool(true)
	}
}

// PackUint32 writes v in as many blocks as needed
func (p *VarIntBlocksPacker) PackUint32(w *bitstream.Writer, v uint32) {
	p.PackUint64(w, uint64(v))
}

// PackUint16 writes v in as many blocks as needed
func (p *VarIntBlocksPacker) PackUint16(w *bitstream.Writer, v uint16) {
	p.PackUint64(w, uint64(v))
}

// UnpackUint64 reads blocks until a cleared continuation bit
func (p *VarIntBlocksPacker) UnpackUint64(r *bitstream.Reader) (uint64, error) {
	var v uint64
	var shift uint
	for {
		chunk, err := r.Read(p.blockSize)
		if err != nil {
			return 0, err
		}
		if chunk != 0 {
			if shift >= 64 || chunk>>(64-shift) != 0 {
				return 0, errors.Wrapf(ErrVarIntOverflow, "block var int exceeds 64 bits")
			}
			v |= chunk << shift
		}
		shift += uint(p.blockSize)

		more, err := r.ReadBool()
		if err != nil {
			return 0, err
		}
		if !more {
			return v, nil
		}
		if shift >= 64+uint(p.blockSize) {
			return 0, errors.Wrapf(ErrVarIntOverflow, "block var int has too many blocks")
		}
	}
}

// UnpackUint32 reads a value and fails if it does not fit 32 bits
func (p *VarIntBlocksPacker) UnpackUint32(r *bitstream.Reader) (uint32, error) {
	v, err := p.UnpackUint64(r)
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint32 {
		return 0, errors.Wrapf(ErrVarIntOverflow, "%d does not fit uint32", v)
	}
	return uint32(v), nil
}

// UnpackUint16 reads a value and fails if it does not fit 16 bits
func (p *VarIntBlocksPacker) UnpackUint16(r *bitstream.Reader) (uint16, error) {
	v, err := p.UnpackUint64(r)
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint16 {
		return 0, errors.Wrapf(ErrVarIntOverflow, "%d does not fit uint16", v)
	}
	return uint16(v), nil
}

// VarIntPacker writes unsigned integers in one of two or three fixed-width tiers selected by a prefix
//
// Three tiers: prefix 0 small, 10 medium, 11 large. Two tiers: prefix 0 small, 1 medium.
// Values above the largest threshold are clamped to it.
type VarIntPacker struct {
	thresholds []uint64
	widths     []int
}

// NewVarIntPacker creates a tiered packer from two or three ascending thresholds
func NewVarIntPacker(thresholds ...uint64) (*VarIntPacker, error) {
	if len(thresholds) != 2 && len(thresholds) != 3 {
		return nil, errors.Wrapf(ErrInvalidPackerConfig, "tiered packer needs 2 or 3 thresholds, got %d", len(thresholds))
	}
	p := &VarIntPacker{
		thresholds: append([]uint64(nil), thresholds...),
		widths:     make([]int, len(thresholds)),
	}
	var last uint64
	for i, t := range thresholds {
		if t == 0 || t <= last {
			return nil, errors.Wrapf(ErrInvalidPackerConfig, "tiered packer thresholds must be positive and ascending: %v", thresholds)
		}
		last = t
		p.widths[i] = bits.Len64(t)
	}
	return p, nil
}

// MustNewVarIntPacker is like NewVarIntPacker but panics on invalid config
func MustNewVarIntPacker(thresholds ...uint64) *VarIntPacker {
	p, err := NewVarIntPacker(thresholds...)
	if err != nil {
		panic(err)
	}
	return p
}

// Max returns the largest value that packs without clamping
func (p *VarIntPacker) Max() uint64 {
	return p.thresholds[len(p.thresholds)-1]
}

func (p *VarIntPacker) tierOf(v uint64) int {
	for i, t := range p.thresholds {
		if v <= t {
			return i
		}
	}
	return len(p.thresholds) - 1
}

// BitCount returns the number of bits v occupies when packed
func (p *VarIntPacker) BitCount(v uint64) int {
	tier := p.tierOf(v)
	return p.prefixBits(tier) + p.widths[tier]
}

func (p *VarIntPacker) prefixBits(tier int) int {
	if tier == 0 || len(p.thresholds) == 2 {
		return 1
	}
	return 2
}

// Pack writes the tier prefix followed by v in the tier width
func (p *VarIntPacker) Pack(w *bitstream.Writer, v uint64) {
	if max := p.Max(); v > max {
		v = max
	}
	tier := p.tierOf(v)
	switch {
	case tier == 0:
		w.WriteBool(false)
	case len(p.thresholds) == 2:
		w.WriteBool(true)
	case tier == 1:
		w.WriteBool(true)
		w.WriteBool(false)
	default:
		w.WriteBool(true)
		w.WriteBool(true)
	}
	w.Write(v, p.widths[tier])
}

// Unpack reads one tiered value
func (p *VarIntPacker) Unpack(r *bitstream.Reader) (uint64, error) {
	tier := 0
	bit, err := r.ReadBool()
	if err != nil {
		return 0, err
	}
	if bit {
		tier = 1
		if len(p.thresholds) == 3 {
			if bit, err = r.ReadBool(); err != nil {
				return 0, err
			}
			if bit {
				tier = 2
			}
		}
	}

	v, err := r.Read(p.widths[tier])
	if err != nil {
		return 0, err
	}
	if v > p.thresholds[tier] {
		return 0, errors.Wrapf(ErrVarIntOverflow, "tier %d value %d exceeds threshold %d", tier, v, p.thresholds[tier])
	}
	return v, nil
}
