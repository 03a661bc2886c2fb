package syncvar

import (
	"hash/fnv"

	"github.com/Moddingdudes/Mirage-sub002/engine/consts"
	"github.com/Moddingdudes/Mirage-sub002/engine/gwlog"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack"
)

// HookFunc is called with the previous and the new value when a field changes
type HookFunc func(obj *Object, old, new interface{})

// FieldDesc describes one tracked field
type FieldDesc struct {
	Name               string
	Index              int // dirty bit index, unique across the schema chain
	Codec              Codec
	Hook               HookFunc
	InitialOnly        bool // only sent in initial state
	InvokeHookOnServer bool // hook also fires for local writes on the server
	DeclaredBy         string
}

// FieldOption customizes a field when it is declared
type FieldOption func(fd *FieldDesc)

// WithHook sets the change hook of the field
func WithHook(hook HookFunc) FieldOption {
	return func(fd *FieldDesc) {
		fd.Hook = hook
	}
}

// InitialOnly makes the field part of the initial state only, it never appears in deltas
func InitialOnly() FieldOption {
	return func(fd *FieldDesc) {
		fd.InitialOnly = true
	}
}

// InvokeHookOnServer makes the hook fire for writes made on the server too
func InvokeHookOnServer() FieldOption {
	return func(fd *FieldDesc) {
		fd.InvokeHookOnServer = true
	}
}

// Schema is the flat, ordered field layout of one replicated field group
//
// Fields of base schemas come first, so a derived schema never shifts dirty bits at runtime.
// Both peers must build identical schemas: the layout is not sent on the wire.
type Schema struct {
	name            string
	base            *Schema
	direction       SyncDirection
	fields          []*FieldDesc
	fieldsByName    map[string]*FieldDesc
	initialOnlyMask uint64
	fingerprint     uint64
}

// Name returns the schema name
func (s *Schema) Name() string {
	return s.name
}

func (s *Schema) String() string {
	return "Schema<" + s.name + ">"
}

// Base returns the schema this one extends, or nil
func (s *Schema) Base() *Schema {
	return s.base
}

// Direction returns the sync direction of the field group
func (s *Schema) Direction() SyncDirection {
	return s.direction
}

// NumFields returns the number of fields, including inherited ones. It is also the delta mask width.
func (s *Schema) NumFields() int {
	return len(s.fields)
}

// Field returns the field at index
func (s *Schema) Field(index int) *FieldDesc {
	return s.fields[index]
}

// FieldByName returns the field with the name
func (s *Schema) FieldByName(name string) (*FieldDesc, bool) {
	fd, ok := s.fieldsByName[name]
	return fd, ok
}

// Fields returns all fields in index order
//
// Never modify the return value !
func (s *Schema) Fields() []*FieldDesc {
	return s.fields
}

// InitialOnlyMask returns the bits of all initial-only fields
func (s *Schema) InitialOnlyMask() uint64 {
	return s.initialOnlyMask
}

// Fingerprint returns a hash of the layout, equal on peers that built the same schema
func (s *Schema) Fingerprint() uint64 {
	return s.fingerprint
}

// IsA checks if s is other or extends it
func (s *Schema) IsA(other *Schema) bool {
	for t := s; t != nil; t = t.base {
		if t == other {
			return true
		}
	}
	return false
}

type fieldLayout struct {
	Name        string `msgpack:"n"`
	Codec       string `msgpack:"c"`
	InitialOnly bool   `msgpack:"i"`
}

type schemaLayout struct {
	Name      string        `msgpack:"n"`
	Direction string        `msgpack:"d"`
	Fields    []fieldLayout `msgpack:"f"`
}

func (s *Schema) computeFingerprint() (uint64, error) {
	layout := schemaLayout{
		Name:      s.name,
		Direction: s.direction.String(),
	}
	for _, fd := range s.fields {
		layout.Fields = append(layout.Fields, fieldLayout{fd.Name, fd.Codec.String(), fd.InitialOnly})
	}
	data, err := msgpack.Marshal(&layout)
	if err != nil {
		return 0, errors.Wrapf(err, "marshal layout of %s", s.name)
	}
	h := fnv.New64a()
	h.Write(data)
	return h.Sum64(), nil
}

// SchemaBuilder declares a schema field by field
type SchemaBuilder struct {
	name      string
	base      *Schema
	direction *SyncDirection
	fields    []*FieldDesc
}

// NewSchema starts declaring a schema
func NewSchema(name string) *SchemaBuilder {
	return &SchemaBuilder{name: name}
}

// Extends makes the schema start with all fields of base
func (b *SchemaBuilder) Extends(base *Schema) *SchemaBuilder {
	b.base = base
	return b
}

// Direction sets the sync direction, inherited from the base schema if not set
func (b *SchemaBuilder) Direction(dir SyncDirection) *SchemaBuilder {
	b.direction = &dir
	return b
}

// Field declares the next field
func (b *SchemaBuilder) Field(name string, codec Codec, opts ...FieldOption) *SchemaBuilder {
	fd := &FieldDesc{
		Name:       name,
		Codec:      codec,
		DeclaredBy: b.name,
	}
	for _, opt := range opts {
		opt(fd)
	}
	b.fields = append(b.fields, fd)
	return b
}

// Build validates the declaration and returns the flattened schema
func (b *SchemaBuilder) Build() (*Schema, error) {
	if b.name == "" {
		return nil, errors.Wrap(ErrInvalidSchema, "schema name is empty")
	}

	s := &Schema{
		name:         b.name,
		base:         b.base,
		direction:    DefaultDirection,
		fieldsByName: map[string]*FieldDesc{},
	}
	if b.base != nil {
		s.direction = b.base.direction
		s.fields = append(s.fields, b.base.fields...)
		for _, fd := range b.base.fields {
			s.fieldsByName[fd.Name] = fd
		}
	}
	if b.direction != nil {
		s.direction = *b.direction
	}
	if err := Validate(s.direction); err != nil {
		return nil, errors.Wrapf(err, "schema %s", b.name)
	}

	count := len(s.fields) + len(b.fields)
	if count > consts.MAX_TRACKED_FIELDS {
		return nil, &TooManyTrackedFieldsError{Schema: b.name, Count: count, Max: consts.MAX_TRACKED_FIELDS}
	}

	for _, decl := range b.fields {
		if decl.Name == "" {
			return nil, errors.Wrapf(ErrInvalidSchema, "schema %s: field %d has no name", b.name, len(s.fields))
		}
		if decl.Codec == nil {
			return nil, errors.Wrapf(ErrInvalidSchema, "schema %s: field %s has no codec", b.name, decl.Name)
		}
		if prev, ok := s.fieldsByName[decl.Name]; ok {
			return nil, errors.Wrapf(ErrInvalidSchema, "schema %s: field %s already declared by %s", b.name, decl.Name, prev.DeclaredBy)
		}

		fd := *decl
		fd.Index = len(s.fields)
		s.fields = append(s.fields, &fd)
		s.fieldsByName[fd.Name] = &fd
		if fd.InitialOnly {
			s.initialOnlyMask |= 1 << uint(fd.Index)
		}
	}
	if b.base != nil {
		s.initialOnlyMask |= b.base.initialOnlyMask
	}

	var err error
	if s.fingerprint, err = s.computeFingerprint(); err != nil {
		return nil, err
	}
	if gwlog.GetLevel() <= gwlog.DebugLevel {
		for _, fd := range s.fields[len(s.fields)-len(b.fields):] {
			gwlog.Debugf("        SyncVar %s.%s = %d %s", s.name, fd.Name, fd.Index, fd.Codec)
		}
	}
	return s, nil
}

// MustBuild is like Build but panics on invalid declarations
func (b *SchemaBuilder) MustBuild() *Schema {
	s, err := b.Build()
	if err != nil {
		gwlog.Panicf("build schema %s failed: %v", b.name, err)
	}
	return s
}
