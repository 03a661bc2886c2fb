package syncvar

import (
	"fmt"

	"github.com/Moddingdudes/Mirage-sub002/engine/common"
	"github.com/Moddingdudes/Mirage-sub002/engine/consts"
	"github.com/Moddingdudes/Mirage-sub002/engine/gwlog"
	"github.com/Moddingdudes/Mirage-sub002/engine/packer"
	"github.com/pkg/errors"
	"github.com/xiaonanln/typeconv"
)

// Resolver looks up replicated objects referenced by Ref fields
type Resolver interface {
	Resolve(id common.NetID) (interface{}, bool)
}

// Object holds the values and dirty bits of one replicated field group
//
// Objects are owned by the main loop and must not be shared across goroutines.
type Object struct {
	schema   *Schema
	values   []interface{}
	dirty    uint64
	relay    uint64 // owner writes the server forwards to observers
	role     Role
	resolver Resolver
	context  interface{}
}

// NewObject creates an unspawned object with zero values
func NewObject(schema *Schema) *Object {
	o := &Object{
		schema: schema,
		values: make([]interface{}, schema.NumFields()),
	}
	for i, fd := range schema.fields {
		o.values[i] = fd.Codec.Zero()
	}
	return o
}

func (o *Object) String() string {
	return fmt.Sprintf("%s<%s>", o.schema.name, o.role)
}

// Schema returns the schema of the object
func (o *Object) Schema() *Schema {
	return o.schema
}

// Role returns the local role
func (o *Object) Role() Role {
	return o.role
}

// SetRole sets the local role. Switching roles drops pending dirty bits.
func (o *Object) SetRole(role Role) {
	if o.role != role {
		o.dirty, o.relay = 0, 0
	}
	o.role = role
}

// SetResolver sets the registry used to resolve Ref fields
func (o *Object) SetResolver(resolver Resolver) {
	o.resolver = resolver
}

// Context returns the value attached with SetContext
func (o *Object) Context() interface{} {
	return o.context
}

// SetContext attaches a value to the object, typically the entity holding it, for hooks to use
func (o *Object) SetContext(ctx interface{}) {
	o.context = ctx
}

func (o *Object) field(name string) (*FieldDesc, error) {
	fd, ok := o.schema.fieldsByName[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownField, "%s.%s", o.schema.name, name)
	}
	return fd, nil
}

// Set writes a field by name
func (o *Object) Set(name string, v interface{}) error {
	fd, err := o.field(name)
	if err != nil {
		return err
	}
	return o.set(fd, v)
}

// SetIndex writes a field by dirty index
func (o *Object) SetIndex(index int, v interface{}) error {
	if index < 0 || index >= len(o.values) {
		return errors.Wrapf(ErrUnknownField, "%s[%d]", o.schema.name, index)
	}
	return o.set(o.schema.fields[index], v)
}

func (o *Object) set(fd *FieldDesc, v interface{}) error {
	if !CanWrite(o.role, o.schema.direction) {
		return &AuthorityError{Schema: o.schema.name, Field: fd.Name, Role: o.role, Direction: o.schema.direction}
	}
	val, err := fd.Codec.Coerce(v)
	if err != nil {
		return errors.Wrapf(err, "%s.%s", o.schema.name, fd.Name)
	}

	old := o.values[fd.Index]
	if old == val {
		return nil
	}
	o.values[fd.Index] = val
	o.markDirty(fd.Index)

	if consts.DEBUG_SYNC {
		gwlog.Debugf("%s.%s: %v -> %v (dirty %x)", o, fd.Name, old, val, o.dirty)
	}
	if fd.Hook != nil && fd.InvokeHookOnServer && o.role == RoleServer {
		fd.Hook(o, old, val)
	}
	return nil
}

func (o *Object) markDirty(index int) {
	if o.role == RoleNone {
		return
	}
	bit := uint64(1) << uint(index)
	o.dirty |= bit
	if o.role == RoleServer {
		// the server's own write supersedes a pending relay
		o.relay &^= bit
	}
}

// SetDirty marks a field dirty without changing it
func (o *Object) SetDirty(index int) error {
	if index < 0 || index >= len(o.values) {
		return errors.Wrapf(ErrUnknownField, "%s[%d]", o.schema.name, index)
	}
	if !CanWrite(o.role, o.schema.direction) {
		return &AuthorityError{Schema: o.schema.name, Field: o.schema.fields[index].Name, Role: o.role, Direction: o.schema.direction}
	}
	o.markDirty(index)
	return nil
}

// IsDirty checks if any field waits to be sent
func (o *Object) IsDirty() bool {
	return o.dirty|o.relay != 0
}

// DirtyMask returns the pending dirty bits, including initial-only fields
func (o *Object) DirtyMask() uint64 {
	return o.dirty
}

// RelayMask returns the pending relay bits
func (o *Object) RelayMask() uint64 {
	return o.relay
}

// ConsumeMask returns the dirty bits eligible for a delta and clears the mask
func (o *Object) ConsumeMask() uint64 {
	mask := o.dirty &^ o.schema.initialOnlyMask
	o.dirty = 0
	return mask
}

// ConsumeRelayMask returns the relay bits and clears them
func (o *Object) ConsumeRelayMask() uint64 {
	mask := o.relay &^ o.schema.initialOnlyMask
	o.relay = 0
	return mask
}

// ClearDirty drops all pending dirty and relay bits
func (o *Object) ClearDirty() {
	o.dirty, o.relay = 0, 0
}

// Get returns the value of a field, or nil if the field does not exist
func (o *Object) Get(name string) interface{} {
	fd, ok := o.schema.fieldsByName[name]
	if !ok {
		return nil
	}
	return o.values[fd.Index]
}

// GetIndex returns the value at the dirty index
func (o *Object) GetIndex(index int) interface{} {
	return o.values[index]
}

// GetBool returns a bool field
func (o *Object) GetBool(name string) bool {
	b, _ := o.Get(name).(bool)
	return b
}

// GetInt returns an integer field as int64
func (o *Object) GetInt(name string) int64 {
	v := o.Get(name)
	if v == nil {
		return 0
	}
	return typeconv.Int(v)
}

// GetUint returns an unsigned integer field
func (o *Object) GetUint(name string) uint64 {
	u, _ := o.Get(name).(uint64)
	return u
}

// GetFloat returns a float field
func (o *Object) GetFloat(name string) float32 {
	f, _ := o.Get(name).(float32)
	return f
}

// GetStr returns a string field
func (o *Object) GetStr(name string) string {
	s, _ := o.Get(name).(string)
	return s
}

// GetVector3 returns a vector field
func (o *Object) GetVector3(name string) packer.Vector3 {
	v, _ := o.Get(name).(packer.Vector3)
	return v
}

// GetQuaternion returns a rotation field
func (o *Object) GetQuaternion(name string) packer.Quaternion {
	q, ok := o.Get(name).(packer.Quaternion)
	if !ok {
		return packer.IdentityQuaternion
	}
	return q
}

// GetRef returns the NetID stored in a reference field
func (o *Object) GetRef(name string) common.NetID {
	id, _ := o.Get(name).(common.NetID)
	return id
}

// ResolveRef looks up the object referenced by a reference field
func (o *Object) ResolveRef(name string) (interface{}, bool) {
	id := o.GetRef(name)
	if id.IsNil() || o.resolver == nil {
		return nil, false
	}
	return o.resolver.Resolve(id)
}

// SetBool writes a bool field
func (o *Object) SetBool(name string, v bool) error {
	return o.Set(name, v)
}

// SetInt writes an integer field
func (o *Object) SetInt(name string, v int64) error {
	return o.Set(name, v)
}

// SetUint writes an unsigned integer field
func (o *Object) SetUint(name string, v uint64) error {
	return o.Set(name, v)
}

// SetFloat writes a float field
func (o *Object) SetFloat(name string, v float32) error {
	return o.Set(name, v)
}

// SetStr writes a string field
func (o *Object) SetStr(name string, v string) error {
	return o.Set(name, v)
}

// SetVector3 writes a vector field
func (o *Object) SetVector3(name string, v packer.Vector3) error {
	return o.Set(name, v)
}

// SetQuaternion writes a rotation field
func (o *Object) SetQuaternion(name string, q packer.Quaternion) error {
	return o.Set(name, q)
}

// SetRef writes a reference field, target may be a common.NetID, an Identified or nil
func (o *Object) SetRef(name string, target interface{}) error {
	return o.Set(name, target)
}

// DumpValues returns all values by field name
func (o *Object) DumpValues() map[string]interface{} {
	values := make(map[string]interface{}, len(o.values))
	for i, fd := range o.schema.fields {
		values[fd.Name] = o.values[i]
	}
	return values
}

// LoadValues replaces values from a dump, converting loosely typed values. No dirty bits are set and no hooks fire.
func (o *Object) LoadValues(values map[string]interface{}) error {
	loaded := make([]interface{}, len(o.values))
	copy(loaded, o.values)
	for name, v := range values {
		fd, err := o.field(name)
		if err != nil {
			return err
		}
		if loaded[fd.Index], err = fd.Codec.Coerce(v); err != nil {
			return errors.Wrapf(err, "%s.%s", o.schema.name, name)
		}
	}
	o.values = loaded
	return nil
}
