package syncvar

import (
	"math/bits"

	"github.com/Moddingdudes/Mirage-sub002/engine/bitstream"
)

// FieldMask returns a mask with the low n bits set
func FieldMask(n int) uint64 {
	if n >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(n)) - 1
}

// WriteInitial writes the value of every field in index order, without a mask
func WriteInitial(w *bitstream.Writer, obj *Object) {
	for i, fd := range obj.schema.fields {
		fd.Codec.Write(w, obj.values[i])
	}
}

// WriteDelta writes mask as a NumFields-bit integer followed by every masked field in index order
//
// Initial-only fields are dropped from the mask.
func WriteDelta(w *bitstream.Writer, obj *Object, mask uint64) {
	n := obj.schema.NumFields()
	mask &= FieldMask(n) &^ obj.schema.initialOnlyMask
	w.Write(mask, n)
	for m := mask; m != 0; m &= m - 1 {
		i := bits.TrailingZeros64(m)
		obj.schema.fields[i].Codec.Write(w, obj.values[i])
	}
}

// ReadInitial reads every field and applies them without firing hooks
func ReadInitial(r *bitstream.Reader, obj *Object) error {
	values, err := decodeInitial(r, obj)
	if err != nil {
		return err
	}
	copy(obj.values, values)
	return nil
}

// ReadDelta reads a mask and the masked fields, applies them and fires hooks in index order
func ReadDelta(r *bitstream.Reader, obj *Object) (uint64, error) {
	mask, values, err := decodeDelta(r, obj)
	if err != nil {
		return 0, err
	}
	applyDelta(obj, mask, values)
	return mask, nil
}

func decodeInitial(r *bitstream.Reader, obj *Object) ([]interface{}, error) {
	values := make([]interface{}, len(obj.values))
	for i, fd := range obj.schema.fields {
		v, err := fd.Codec.Read(r)
		if err != nil {
			return nil, desyncf(obj.schema, err, "read initial field %s", fd.Name)
		}
		values[i] = v
	}
	return values, nil
}

func decodeDelta(r *bitstream.Reader, obj *Object) (uint64, []interface{}, error) {
	schema := obj.schema
	if !AcceptsFrom(obj.role, schema.direction) {
		return 0, nil, &AuthorityError{Schema: schema.name, Role: obj.role, Direction: schema.direction}
	}

	mask, err := r.Read(schema.NumFields())
	if err != nil {
		return 0, nil, desyncf(schema, err, "read dirty mask")
	}
	if bad := mask & schema.initialOnlyMask; bad != 0 {
		return 0, nil, desyncf(schema, nil, "initial-only field %s in delta", schema.fields[bits.TrailingZeros64(bad)].Name)
	}

	values := make([]interface{}, 0, bits.OnesCount64(mask))
	for m := mask; m != 0; m &= m - 1 {
		fd := schema.fields[bits.TrailingZeros64(m)]
		v, err := fd.Codec.Read(r)
		if err != nil {
			return 0, nil, desyncf(schema, err, "read delta field %s", fd.Name)
		}
		values = append(values, v)
	}
	return mask, values, nil
}

func applyDelta(obj *Object, mask uint64, values []interface{}) {
	olds := make([]interface{}, len(values))
	k := 0
	for m := mask; m != 0; m &= m - 1 {
		i := bits.TrailingZeros64(m)
		olds[k] = obj.values[i]
		obj.values[i] = values[k]
		k++
	}

	if obj.role == RoleServer {
		// owner values are forwarded to observers and never echoed back
		obj.dirty &^= mask
		if RelayRecipients(obj.schema.direction) != 0 {
			obj.relay |= mask
		}
	}

	k = 0
	for m := mask; m != 0; m &= m - 1 {
		fd := obj.schema.fields[bits.TrailingZeros64(m)]
		if fd.Hook != nil {
			fd.Hook(obj, olds[k], values[k])
		}
		k++
	}
}

// Update is a decoded body that has not been applied yet
//
// Bodies of several objects sharing one message are all decoded before any is applied.
type Update struct {
	obj     *Object
	mask    uint64
	values  []interface{}
	initial bool
}

// DecodeInitial decodes an initial body of obj without applying it
func DecodeInitial(r *bitstream.Reader, obj *Object) (*Update, error) {
	values, err := decodeInitial(r, obj)
	if err != nil {
		return nil, err
	}
	return &Update{obj: obj, mask: FieldMask(len(values)), values: values, initial: true}, nil
}

// DecodeDelta decodes a delta body of obj without applying it
func DecodeDelta(r *bitstream.Reader, obj *Object) (*Update, error) {
	mask, values, err := decodeDelta(r, obj)
	if err != nil {
		return nil, err
	}
	return &Update{obj: obj, mask: mask, values: values}, nil
}

// Mask returns the fields carried by the update
func (u *Update) Mask() uint64 {
	return u.mask
}

// Apply writes the values to the object, hooks fire for deltas only
func (u *Update) Apply() {
	if u.initial {
		copy(u.obj.values, u.values)
		return
	}
	applyDelta(u.obj, u.mask, u.values)
}

// CheckTrailing fails unless r holds nothing but zero padding shorter than a byte
func CheckTrailing(r *bitstream.Reader, obj *Object) error {
	return checkTrailing(r, obj)
}

func checkTrailing(r *bitstream.Reader, obj *Object) error {
	rem := r.Remaining()
	if rem >= 8 {
		return desyncf(obj.schema, nil, "%d trailing bits", rem)
	}
	pad, err := r.Read(rem)
	if err != nil || pad != 0 {
		return desyncf(obj.schema, err, "non-zero padding")
	}
	return nil
}

// SerializeInitial returns the initial state of obj as a byte padded body
func SerializeInitial(obj *Object) ([]byte, error) {
	w := bitstream.GetWriter()
	defer bitstream.PutWriter(w)
	WriteInitial(w, obj)
	return w.CopyBytes(), nil
}

// SerializeDelta consumes the dirty mask of obj and returns the delta as a byte padded body
func SerializeDelta(obj *Object) ([]byte, error) {
	if obj.role == RoleObserver {
		return nil, &AuthorityError{Schema: obj.schema.name, Role: obj.role, Direction: obj.schema.direction}
	}
	w := bitstream.GetWriter()
	defer bitstream.PutWriter(w)
	WriteDelta(w, obj, obj.ConsumeMask())
	return w.CopyBytes(), nil
}

// ApplyInitial applies a body produced by SerializeInitial, no hooks fire
func ApplyInitial(obj *Object, data []byte) error {
	r := bitstream.NewReader(data)
	values, err := decodeInitial(r, obj)
	if err != nil {
		return err
	}
	if err := checkTrailing(r, obj); err != nil {
		return err
	}
	copy(obj.values, values)
	return nil
}

// ApplyDelta applies a body produced by SerializeDelta and fires hooks of the changed fields
//
// Nothing is applied if the body does not match the schema.
func ApplyDelta(obj *Object, data []byte) error {
	r := bitstream.NewReader(data)
	mask, values, err := decodeDelta(r, obj)
	if err != nil {
		return err
	}
	if err := checkTrailing(r, obj); err != nil {
		return err
	}
	applyDelta(obj, mask, values)
	return nil
}
