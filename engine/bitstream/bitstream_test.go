package bitstream

import (
	"math"
	"math/rand"
	"testing"

	"github.com/Moddingdudes/Mirage-sub002/engine/consts"
	"github.com/bmizerany/assert"
)

func TestWriteRead(t *testing.T) {
	w := NewWriter(0)
	w.Write(1, 1)
	w.Write(5, 3)
	w.Write(0xABCD, 16)
	w.Write(math.MaxUint64, 64)
	w.Write(0, 0)
	w.Write(0x3, 7)
	assert.Equal(t, 1+3+16+64+7, w.BitPosition())
	assert.Equal(t, (91+7)/8, w.ByteLength())

	r := NewReader(w.Bytes())
	v, err := r.Read(1)
	assert.Equal(t, nil, err)
	assert.Equal(t, uint64(1), v)
	v, _ = r.Read(3)
	assert.Equal(t, uint64(5), v)
	v, _ = r.Read(16)
	assert.Equal(t, uint64(0xABCD), v)
	v, _ = r.Read(64)
	assert.Equal(t, uint64(math.MaxUint64), v)
	v, _ = r.Read(0)
	assert.Equal(t, uint64(0), v)
	v, _ = r.Read(7)
	assert.Equal(t, uint64(3), v)
}

func TestWriteMasksHighBits(t *testing.T) {
	w := NewWriter(8)
	w.Write(0xFF, 4)
	w.Write(0, 4)
	assert.Equal(t, []byte{0x0F}, w.Bytes())
}

func TestLSBFirst(t *testing.T) {
	w := NewWriter(8)
	w.WriteBool(true)
	w.WriteBool(false)
	w.WriteBool(true)
	assert.Equal(t, []byte{0x05}, w.Bytes())
}

func TestOutOfBounds(t *testing.T) {
	w := NewWriter(8)
	w.Write(0x1F, 5)
	r := NewReaderBits(w.Bytes(), w.BitPosition())
	_, err := r.Read(4)
	assert.Equal(t, nil, err)
	_, err = r.Read(2)
	assert.T(t, IsOutOfBounds(err))
	oob := err.(*OutOfBoundsError)
	assert.Equal(t, 4, oob.Position)
	assert.Equal(t, 2, oob.Requested)
	assert.Equal(t, 5, oob.Length)
	assert.Equal(t, 4, r.BitPosition())
	assert.Equal(t, 1, r.Remaining())
}

func TestInvalidBitCount(t *testing.T) {
	r := NewReader([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9})
	_, err := r.Read(65)
	assert.NotEqual(t, nil, err)
	assert.T(t, !IsOutOfBounds(err))

	defer func() {
		assert.NotEqual(t, nil, recover())
	}()
	NewWriter(0).Write(1, 65)
}

func TestTypedHelpers(t *testing.T) {
	w := GetWriter()
	defer PutWriter(w)
	w.WriteBool(true)
	w.WriteUint8(200)
	w.WriteUint16(60000)
	w.WriteUint32(4000000000)
	w.WriteUint64(1 << 63)
	w.WriteFloat32(-1.5)
	w.WriteFloat64(math.Pi)

	r := NewReader(w.CopyBytes())
	b, _ := r.ReadBool()
	assert.T(t, b)
	u8, _ := r.ReadUint8()
	assert.Equal(t, uint8(200), u8)
	u16, _ := r.ReadUint16()
	assert.Equal(t, uint16(60000), u16)
	u32, _ := r.ReadUint32()
	assert.Equal(t, uint32(4000000000), u32)
	u64, _ := r.ReadUint64()
	assert.Equal(t, uint64(1<<63), u64)
	f32, _ := r.ReadFloat32()
	assert.Equal(t, float32(-1.5), f32)
	f64, err := r.ReadFloat64()
	assert.Equal(t, nil, err)
	assert.Equal(t, math.Pi, f64)
}

func TestBytesAlignedAndUnaligned(t *testing.T) {
	payload := []byte("hello")
	w := NewWriter(0)
	w.WriteBytes(payload)
	w.WriteBool(true)
	w.WriteBytes(payload)

	r := NewReader(w.Bytes())
	b, err := r.ReadBytes(5)
	assert.Equal(t, nil, err)
	assert.Equal(t, payload, b)
	r.ReadBool()
	b, err = r.ReadBytes(5)
	assert.Equal(t, nil, err)
	assert.Equal(t, payload, b)

	_, err = r.ReadBytes(1)
	assert.T(t, IsOutOfBounds(err))
}

func TestPadToByte(t *testing.T) {
	w := NewWriter(0)
	w.Write(1, 3)
	w.PadToByte()
	assert.Equal(t, 8, w.BitPosition())
	w.PadToByte()
	assert.Equal(t, 8, w.BitPosition())
	w.Write(0xAA, 8)

	r := NewReader(w.Bytes())
	r.Read(3)
	r.SkipToByte()
	v, _ := r.Read(8)
	assert.Equal(t, uint64(0xAA), v)
	assert.Equal(t, 0, r.Remaining())
}

func TestWriteFrom(t *testing.T) {
	src := NewWriter(0)
	src.Write(0x5A5, 11)
	src.Write(1, 1)
	src.Write(0x7, 3)

	for _, prefix := range []int{0, 1, 5, 8} {
		dst := NewWriter(0)
		dst.Write(0, prefix)
		dst.WriteFrom(src)
		assert.Equal(t, prefix+15, dst.BitPosition())

		r := NewReader(dst.Bytes())
		r.Read(prefix)
		v, _ := r.Read(11)
		assert.Equal(t, uint64(0x5A5), v)
		v, _ = r.Read(1)
		assert.Equal(t, uint64(1), v)
		v, _ = r.Read(3)
		assert.Equal(t, uint64(7), v)
	}
}

func TestResetReuse(t *testing.T) {
	w := NewWriter(1)
	w.Write(math.MaxUint64, 64)
	w.Reset()
	assert.Equal(t, 0, w.BitPosition())
	w.Write(0, 12)
	assert.Equal(t, []byte{0, 0}, w.Bytes())

	r := NewReader([]byte{0xFF})
	r.Read(8)
	r.Reset([]byte{0x01})
	v, err := r.Read(1)
	assert.Equal(t, nil, err)
	assert.Equal(t, uint64(1), v)
}

func TestRandomRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	type item struct {
		v    uint64
		bits int
	}
	var items []item
	w := NewWriter(0)
	for i := 0; i < 1000; i++ {
		bits := rnd.Intn(65)
		v := rnd.Uint64()
		if bits < 64 {
			v &= (uint64(1) << uint(bits)) - 1
		}
		items = append(items, item{v, bits})
		w.Write(v, bits)
	}

	r := NewReader(w.Bytes())
	for _, it := range items {
		v, err := r.Read(it.bits)
		assert.Equal(t, nil, err)
		assert.Equal(t, it.v, v)
	}
	assert.T(t, r.Remaining() < 8)
}

func BenchmarkWrite(b *testing.B) {
	w := NewWriter(consts.MAX_PACKET_SIZE)
	for i := 0; i < b.N; i++ {
		w.Reset()
		for j := 0; j < 100; j++ {
			w.Write(uint64(j), 9)
		}
	}
}
