package packer

import (
	"math"
	"math/rand"
	"testing"

	"github.com/Moddingdudes/Mirage-sub002/engine/bitstream"
	"github.com/bmizerany/assert"
	"github.com/pkg/errors"
)

func roundTripFloat(p *FloatPacker, v float32) float32 {
	w := bitstream.NewWriter(8)
	p.Pack(w, v)
	if w.BitPosition() != p.Bits() {
		panic("wrong bit count")
	}
	out, err := p.Unpack(bitstream.NewReader(w.Bytes()))
	if err != nil {
		panic(err)
	}
	return out
}

func TestFloatPackerBits(t *testing.T) {
	p := MustNewFloatPacker(100, 0.1, false)
	assert.Equal(t, 10, p.Bits())
	p = MustNewFloatPacker(100, 0.1, true)
	assert.Equal(t, 11, p.Bits())
	p = MustNewFloatPacker(1, 1.0/1024, false)
	assert.Equal(t, 10, p.Bits())
}

func TestFloatPackerInvalidConfig(t *testing.T) {
	cases := []struct {
		max, precision float32
		signed         bool
	}{
		{0, 0.1, false},
		{-1, 0.1, true},
		{1, 0, false},
		{1, -0.5, true},
		{1, 1, false},     // 0 bits
		{1, 2, false},     // negative bits
		{1e9, 1e-9, true}, // more than 32 bits
	}
	for _, c := range cases {
		_, err := NewFloatPacker(c.max, c.precision, c.signed)
		assert.Tf(t, errors.Cause(err) == ErrInvalidPackerConfig, "max=%v precision=%v: %v", c.max, c.precision, err)
	}

	_, err := NewFloatPackerBits(1, 0, false)
	assert.Equal(t, ErrInvalidPackerConfig, errors.Cause(err))
	_, err = NewFloatPackerBits(1, 33, false)
	assert.Equal(t, ErrInvalidPackerConfig, errors.Cause(err))
}

func TestFloatPackerPrecision(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	for _, signed := range []bool{false, true} {
		for _, cfg := range [][2]float32{{1, 0.01}, {100, 0.1}, {1000, 0.05}, {5, 0.001}} {
			max, precision := cfg[0], cfg[1]
			p := MustNewFloatPacker(max, precision, signed)
			min := float32(0)
			if signed {
				min = -max
			}
			for i := 0; i < 2000; i++ {
				v := min + rnd.Float32()*(max-min)
				out := roundTripFloat(p, v)
				diff := math.Abs(float64(out - v))
				assert.Tf(t, diff <= float64(precision)*1.0001, "max=%v precision=%v signed=%v: %v -> %v", max, precision, signed, v, out)
			}
			assert.Equal(t, float32(0), roundTripFloat(p, 0))
		}
	}
}

func TestFloatPackerClamp(t *testing.T) {
	p := MustNewFloatPacker(10, 0.01, true)
	assert.Equal(t, float32(10), roundTripFloat(p, 11))
	assert.Equal(t, float32(10), roundTripFloat(p, float32(math.Inf(1))))
	assert.Equal(t, float32(-10), roundTripFloat(p, -123))
	assert.Equal(t, float32(0), roundTripFloat(p, float32(math.NaN())))

	p = MustNewFloatPacker(10, 0.01, false)
	assert.Equal(t, float32(10), roundTripFloat(p, 10.5))
	assert.Equal(t, float32(0), roundTripFloat(p, -3))
}

func TestFloatPackerSignedOneBit(t *testing.T) {
	p, err := NewFloatPackerBits(1, 1, true)
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, p.Bits())
	assert.Equal(t, float32(0), roundTripFloat(p, 0))
	assert.Equal(t, float32(1), roundTripFloat(p, 1))
	assert.Equal(t, float32(-1), roundTripFloat(p, -1))
}

func TestFloatPackerNoClamp(t *testing.T) {
	p := MustNewFloatPacker(50, 0.5, true)
	w := bitstream.NewWriter(8)
	p.PackNoClamp(w, -12.25)
	p.PackNoClamp(w, 0)
	r := bitstream.NewReader(w.Bytes())
	v, _ := p.Unpack(r)
	assert.T(t, math.Abs(float64(v+12.25)) <= 0.5)
	v, _ = p.Unpack(r)
	assert.Equal(t, float32(0), v)
}

func TestFloatPackerTruncated(t *testing.T) {
	p := MustNewFloatPacker(100, 0.01, true)
	_, err := p.Unpack(bitstream.NewReader([]byte{0xFF}))
	assert.T(t, bitstream.IsOutOfBounds(err))
}

func BenchmarkFloatPack(b *testing.B) {
	p := MustNewFloatPacker(1000, 0.01, true)
	w := bitstream.NewWriter(1024)
	for i := 0; i < b.N; i++ {
		if w.ByteLength() > 1000 {
			w.Reset()
		}
		p.Pack(w, float32(i%2000)-1000)
	}
}
