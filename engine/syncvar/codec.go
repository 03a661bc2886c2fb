package syncvar

import (
	"fmt"
	"math"

	"github.com/Moddingdudes/Mirage-sub002/engine/bitstream"
	"github.com/Moddingdudes/Mirage-sub002/engine/common"
	"github.com/Moddingdudes/Mirage-sub002/engine/consts"
	"github.com/Moddingdudes/Mirage-sub002/engine/gwutils"
	"github.com/Moddingdudes/Mirage-sub002/engine/packer"
	"github.com/pkg/errors"
	"github.com/xiaonanln/typeconv"
)

// Codec is the wire strategy of one field type
//
// Values handed to Write are always the result of Coerce, so codecs may assert their own value type.
type Codec interface {
	String() string
	// BitWidth returns the number of bits of one value, or -1 if it depends on the value
	BitWidth() int
	Zero() interface{}
	Coerce(v interface{}) (interface{}, error)
	Write(w *bitstream.Writer, v interface{})
	Read(r *bitstream.Reader) (interface{}, error)
}

// Identified is implemented by anything that can be stored in a reference field
type Identified interface {
	NetID() common.NetID
}

var defaultBlocks = packer.MustNewVarIntBlocksPacker(consts.DEFAULT_VARINT_BLOCK_SIZE)

func invalidValue(codec Codec, v interface{}) error {
	return errors.Wrapf(ErrInvalidValue, "%T(%v) is not a valid %s", v, v, codec)
}

func coerceInt(v interface{}) (n int64, err error) {
	err = gwutils.CatchPanic(func() {
		n = typeconv.Int(v)
	})
	return
}

func coerceUint(v interface{}) (uint64, bool) {
	switch x := v.(type) {
	case uint64:
		return x, true
	case uint:
		return uint64(x), true
	case uint32:
		return uint64(x), true
	case uint16:
		return uint64(x), true
	case uint8:
		return uint64(x), true
	}
	n, err := coerceInt(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return uint64(n), true
}

func coerceFloat(v interface{}) (float32, bool) {
	switch x := v.(type) {
	case float32:
		return x, true
	case float64:
		return float32(x), true
	}
	n, err := coerceInt(v)
	if err != nil {
		return 0, false
	}
	return float32(n), true
}

func coerceFloatMap(v interface{}, keys ...string) ([]float32, bool) {
	var m map[string]interface{}
	if err := gwutils.CatchPanic(func() {
		m = typeconv.MapStringAnything(v)
	}); err != nil || m == nil {
		return nil, false
	}
	out := make([]float32, len(keys))
	for i, k := range keys {
		f, ok := coerceFloat(m[k])
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

type boolCodec struct{}

// Bool returns the one-bit boolean codec
func Bool() Codec {
	return boolCodec{}
}

func (boolCodec) String() string    { return "bool" }
func (boolCodec) BitWidth() int     { return 1 }
func (boolCodec) Zero() interface{} { return false }
func (c boolCodec) Coerce(v interface{}) (interface{}, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	n, err := coerceInt(v)
	if err != nil {
		return nil, invalidValue(c, v)
	}
	return n != 0, nil
}
func (boolCodec) Write(w *bitstream.Writer, v interface{}) {
	w.WriteBool(v.(bool))
}
func (boolCodec) Read(r *bitstream.Reader) (interface{}, error) {
	return r.ReadBool()
}

type uintCodec struct {
	bits int
	max  uint64
}

// Uint returns a fixed width unsigned integer codec, values are uint64
func Uint(bits int) Codec {
	if bits <= 0 || bits > 64 {
		panic(errors.Wrapf(ErrInvalidSchema, "uint width must be within 1..64, got %d", bits))
	}
	max := uint64(math.MaxUint64)
	if bits < 64 {
		max = (uint64(1) << uint(bits)) - 1
	}
	return uintCodec{bits: bits, max: max}
}

func (c uintCodec) String() string  { return fmt.Sprintf("uint(%d)", c.bits) }
func (c uintCodec) BitWidth() int   { return c.bits }
func (uintCodec) Zero() interface{} { return uint64(0) }
func (c uintCodec) Coerce(v interface{}) (interface{}, error) {
	n, ok := coerceUint(v)
	if !ok || n > c.max {
		return nil, invalidValue(c, v)
	}
	return n, nil
}
func (c uintCodec) Write(w *bitstream.Writer, v interface{}) {
	w.Write(v.(uint64), c.bits)
}
func (c uintCodec) Read(r *bitstream.Reader) (interface{}, error) {
	return r.Read(c.bits)
}

type intCodec struct {
	bits     int
	min, max int64
}

// Int returns a fixed width two's complement integer codec, values are int64
func Int(bits int) Codec {
	if bits <= 1 || bits > 64 {
		panic(errors.Wrapf(ErrInvalidSchema, "int width must be within 2..64, got %d", bits))
	}
	c := intCodec{bits: bits, min: math.MinInt64, max: math.MaxInt64}
	if bits < 64 {
		c.max = (int64(1) << uint(bits-1)) - 1
		c.min = -c.max - 1
	}
	return c
}

func (c intCodec) String() string  { return fmt.Sprintf("int(%d)", c.bits) }
func (c intCodec) BitWidth() int   { return c.bits }
func (intCodec) Zero() interface{} { return int64(0) }
func (c intCodec) Coerce(v interface{}) (interface{}, error) {
	if u, ok := v.(uint64); ok && u > math.MaxInt64 {
		return nil, invalidValue(c, v)
	}
	n, err := coerceInt(v)
	if err != nil || n < c.min || n > c.max {
		return nil, invalidValue(c, v)
	}
	return n, nil
}
func (c intCodec) Write(w *bitstream.Writer, v interface{}) {
	w.Write(uint64(v.(int64)), c.bits)
}
func (c intCodec) Read(r *bitstream.Reader) (interface{}, error) {
	u, err := r.Read(c.bits)
	if err != nil {
		return nil, err
	}
	if c.bits < 64 && u&(uint64(1)<<uint(c.bits-1)) != 0 {
		u |= ^((uint64(1) << uint(c.bits)) - 1)
	}
	return int64(u), nil
}

type varUintCodec struct {
	p *packer.VarIntBlocksPacker
}

// VarUint returns a block var int codec for unsigned integers, values are uint64
func VarUint(blockSize int) Codec {
	return varUintCodec{p: packer.MustNewVarIntBlocksPacker(blockSize)}
}

func (c varUintCodec) String() string  { return fmt.Sprintf("varuint(%d)", c.p.BlockSize()) }
func (varUintCodec) BitWidth() int     { return -1 }
func (varUintCodec) Zero() interface{} { return uint64(0) }
func (c varUintCodec) Coerce(v interface{}) (interface{}, error) {
	n, ok := coerceUint(v)
	if !ok {
		return nil, invalidValue(c, v)
	}
	return n, nil
}
func (c varUintCodec) Write(w *bitstream.Writer, v interface{}) {
	c.p.PackUint64(w, v.(uint64))
}
func (c varUintCodec) Read(r *bitstream.Reader) (interface{}, error) {
	return c.p.UnpackUint64(r)
}

type tieredUintCodec struct {
	p          *packer.VarIntPacker
	thresholds []uint64
}

// TieredUint returns a tiered var int codec, values are uint64 clamped to the largest threshold
func TieredUint(thresholds ...uint64) Codec {
	return tieredUintCodec{p: packer.MustNewVarIntPacker(thresholds...), thresholds: thresholds}
}

func (c tieredUintCodec) String() string  { return fmt.Sprintf("tiered%v", c.thresholds) }
func (tieredUintCodec) BitWidth() int     { return -1 }
func (tieredUintCodec) Zero() interface{} { return uint64(0) }
func (c tieredUintCodec) Coerce(v interface{}) (interface{}, error) {
	n, ok := coerceUint(v)
	if !ok {
		return nil, invalidValue(c, v)
	}
	if n > c.p.Max() {
		n = c.p.Max()
	}
	return n, nil
}
func (c tieredUintCodec) Write(w *bitstream.Writer, v interface{}) {
	c.p.Pack(w, v.(uint64))
}
func (c tieredUintCodec) Read(r *bitstream.Reader) (interface{}, error) {
	return c.p.Unpack(r)
}

type float32Codec struct{}

// Float32 returns the raw 32 bit float codec
func Float32() Codec {
	return float32Codec{}
}

func (float32Codec) String() string    { return "float32" }
func (float32Codec) BitWidth() int     { return 32 }
func (float32Codec) Zero() interface{} { return float32(0) }
func (c float32Codec) Coerce(v interface{}) (interface{}, error) {
	f, ok := coerceFloat(v)
	if !ok {
		return nil, invalidValue(c, v)
	}
	return f, nil
}
func (float32Codec) Write(w *bitstream.Writer, v interface{}) {
	w.WriteFloat32(v.(float32))
}
func (float32Codec) Read(r *bitstream.Reader) (interface{}, error) {
	return r.ReadFloat32()
}

type quantizedFloatCodec struct {
	p *packer.FloatPacker
}

// QuantizedFloat returns a fixed point float codec, values are float32
func QuantizedFloat(max, precision float32, signed bool) Codec {
	return quantizedFloatCodec{p: packer.MustNewFloatPacker(max, precision, signed)}
}

func (c quantizedFloatCodec) String() string {
	sign := "unsigned"
	if c.p.Signed() {
		sign = "signed"
	}
	return fmt.Sprintf("qfloat(%v,%s)", c.p.Max(), sign)
}
func (c quantizedFloatCodec) BitWidth() int   { return c.p.Bits() }
func (quantizedFloatCodec) Zero() interface{} { return float32(0) }
func (c quantizedFloatCodec) Coerce(v interface{}) (interface{}, error) {
	f, ok := coerceFloat(v)
	if !ok {
		return nil, invalidValue(c, v)
	}
	return f, nil
}
func (c quantizedFloatCodec) Write(w *bitstream.Writer, v interface{}) {
	c.p.Pack(w, v.(float32))
}
func (c quantizedFloatCodec) Read(r *bitstream.Reader) (interface{}, error) {
	return c.p.Unpack(r)
}

type stringCodec struct{}

// String returns the length prefixed string codec
func String() Codec {
	return stringCodec{}
}

func (stringCodec) String() string    { return "string" }
func (stringCodec) BitWidth() int     { return -1 }
func (stringCodec) Zero() interface{} { return "" }
func (c stringCodec) Coerce(v interface{}) (interface{}, error) {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case []byte:
		s = string(x)
	default:
		return nil, invalidValue(c, v)
	}
	if len(s) > consts.MAX_STRING_LENGTH {
		return nil, errors.Wrapf(ErrInvalidValue, "string of %d bytes is longer than %d", len(s), consts.MAX_STRING_LENGTH)
	}
	return s, nil
}
func (stringCodec) Write(w *bitstream.Writer, v interface{}) {
	s := v.(string)
	defaultBlocks.PackUint64(w, uint64(len(s)))
	w.WriteBytes([]byte(s))
}
func (stringCodec) Read(r *bitstream.Reader) (interface{}, error) {
	n, err := defaultBlocks.UnpackUint64(r)
	if err != nil {
		return nil, err
	}
	if n > consts.MAX_STRING_LENGTH {
		return nil, errors.Wrapf(ErrInvalidValue, "string length %d is longer than %d", n, consts.MAX_STRING_LENGTH)
	}
	b, err := r.ReadBytes(int(n))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

type vector3Codec struct {
	p   *packer.Vector3Packer
	max packer.Vector3
}

// Vector3 returns a quantized vector codec with per axis range and precision, values are packer.Vector3
func Vector3(max, precision packer.Vector3) Codec {
	return vector3Codec{p: packer.MustNewVector3Packer(max, precision), max: max}
}

func (c vector3Codec) String() string  { return fmt.Sprintf("vector3(%v,%v,%v)", c.max.X, c.max.Y, c.max.Z) }
func (c vector3Codec) BitWidth() int   { return c.p.Bits() }
func (vector3Codec) Zero() interface{} { return packer.Vector3{} }
func (c vector3Codec) Coerce(v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case packer.Vector3:
		return x, nil
	case *packer.Vector3:
		return *x, nil
	}
	f, ok := coerceFloatMap(v, "X", "Y", "Z")
	if !ok {
		return nil, invalidValue(c, v)
	}
	return packer.Vector3{X: f[0], Y: f[1], Z: f[2]}, nil
}
func (c vector3Codec) Write(w *bitstream.Writer, v interface{}) {
	c.p.Pack(w, v.(packer.Vector3))
}
func (c vector3Codec) Read(r *bitstream.Reader) (interface{}, error) {
	return c.p.Unpack(r)
}

type quaternionCodec struct {
	p *packer.QuaternionPacker
}

// Quaternion returns the smallest-three rotation codec, values are packer.Quaternion
func Quaternion(bitsPerElement int) Codec {
	return quaternionCodec{p: packer.MustNewQuaternionPacker(bitsPerElement)}
}

func (c quaternionCodec) String() string  { return fmt.Sprintf("quaternion(%d)", (c.p.Bits()-2)/3) }
func (c quaternionCodec) BitWidth() int   { return c.p.Bits() }
func (quaternionCodec) Zero() interface{} { return packer.IdentityQuaternion }
func (c quaternionCodec) Coerce(v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case packer.Quaternion:
		return x, nil
	case *packer.Quaternion:
		return *x, nil
	}
	f, ok := coerceFloatMap(v, "X", "Y", "Z", "W")
	if !ok {
		return nil, invalidValue(c, v)
	}
	return packer.Quaternion{X: f[0], Y: f[1], Z: f[2], W: f[3]}, nil
}
func (c quaternionCodec) Write(w *bitstream.Writer, v interface{}) {
	c.p.Pack(w, v.(packer.Quaternion))
}
func (c quaternionCodec) Read(r *bitstream.Reader) (interface{}, error) {
	return c.p.Unpack(r)
}

type refCodec struct{}

// Ref returns the codec of references to other replicated objects, values are common.NetID
//
// The referenced object is looked up through the Object's Resolver on access.
func Ref() Codec {
	return refCodec{}
}

func (refCodec) String() string    { return "ref" }
func (refCodec) BitWidth() int     { return -1 }
func (refCodec) Zero() interface{} { return common.InvalidNetID }
func (c refCodec) Coerce(v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case nil:
		return common.InvalidNetID, nil
	case common.NetID:
		return x, nil
	case Identified:
		return x.NetID(), nil
	}
	n, ok := coerceUint(v)
	if !ok || n > math.MaxUint32 {
		return nil, invalidValue(c, v)
	}
	return common.NetID(n), nil
}
func (refCodec) Write(w *bitstream.Writer, v interface{}) {
	defaultBlocks.PackUint32(w, uint32(v.(common.NetID)))
}
func (refCodec) Read(r *bitstream.Reader) (interface{}, error) {
	id, err := defaultBlocks.UnpackUint32(r)
	if err != nil {
		return nil, err
	}
	return common.NetID(id), nil
}
