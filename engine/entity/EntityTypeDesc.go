package entity

import (
	"encoding/binary"
	"hash/fnv"
	"sort"

	"github.com/Moddingdudes/Mirage-sub002/engine/gwlog"
	"github.com/Moddingdudes/Mirage-sub002/engine/syncvar"
)

// MAX_GROUPS is the maximum number of field groups of one entity type, one bit each in a delta
const MAX_GROUPS = 64

var (
	registeredEntityTypes = map[string]*EntityTypeDesc{}
)

// EntityTypeDesc is the entity type description for registering entity types
type EntityTypeDesc struct {
	name             string
	groups           []*syncvar.Schema
	groupsByName     map[string]int
	destroyWithOwner bool
}

// RegisterEntity registers an entity type made of field groups, each with its own sync direction
func RegisterEntity(typeName string, groups ...*syncvar.Schema) *EntityTypeDesc {
	if _, ok := registeredEntityTypes[typeName]; ok {
		gwlog.Panicf("RegisterEntity: Entity type %s already registered", typeName)
	}
	if typeName == "" {
		gwlog.Panicf("RegisterEntity: empty type name")
	}
	if len(groups) == 0 || len(groups) > MAX_GROUPS {
		gwlog.Panicf("RegisterEntity: %s has %d groups, should be 1~%d", typeName, len(groups), MAX_GROUPS)
	}

	desc := &EntityTypeDesc{
		name:         typeName,
		groups:       groups,
		groupsByName: map[string]int{},
	}
	for i, g := range groups {
		if g == nil {
			gwlog.Panicf("RegisterEntity: %s group %d is nil", typeName, i)
		}
		if _, ok := desc.groupsByName[g.Name()]; ok {
			gwlog.Panicf("RegisterEntity: %s has duplicate group %s", typeName, g.Name())
		}
		desc.groupsByName[g.Name()] = i
	}
	registeredEntityTypes[typeName] = desc

	gwlog.Infof(">>> RegisterEntity %s => %v <<<", typeName, groups)
	return desc
}

// GetEntityTypeDesc returns the registered type, or nil
func GetEntityTypeDesc(typeName string) *EntityTypeDesc {
	return registeredEntityTypes[typeName]
}

// RegisteredEntityTypes returns all registered types sorted by name
func RegisteredEntityTypes() []*EntityTypeDesc {
	descs := make([]*EntityTypeDesc, 0, len(registeredEntityTypes))
	for _, desc := range registeredEntityTypes {
		descs = append(descs, desc)
	}
	sort.Slice(descs, func(i, j int) bool {
		return descs[i].name < descs[j].name
	})
	return descs
}

// Name returns the type name
func (desc *EntityTypeDesc) Name() string {
	return desc.name
}

// NumGroups returns the number of field groups
func (desc *EntityTypeDesc) NumGroups() int {
	return len(desc.groups)
}

// Group returns the schema of group i
func (desc *EntityTypeDesc) Group(i int) *syncvar.Schema {
	return desc.groups[i]
}

// GroupIndex returns the index of the group with the schema name
func (desc *EntityTypeDesc) GroupIndex(name string) (int, bool) {
	i, ok := desc.groupsByName[name]
	return i, ok
}

// SetDestroyWithOwner makes entities of this type get destroyed when their owner disconnects
func (desc *EntityTypeDesc) SetDestroyWithOwner(destroy bool) *EntityTypeDesc {
	desc.destroyWithOwner = destroy
	return desc
}

// DestroyWithOwner checks if entities of this type are destroyed when their owner disconnects
func (desc *EntityTypeDesc) DestroyWithOwner() bool {
	return desc.destroyWithOwner
}

// Fingerprint identifies the type name and the layouts of all groups
func (desc *EntityTypeDesc) Fingerprint() uint64 {
	h := fnv.New64a()
	h.Write([]byte(desc.name))
	var buf [8]byte
	for _, g := range desc.groups {
		binary.LittleEndian.PutUint64(buf[:], g.Fingerprint())
		h.Write(buf[:])
	}
	return h.Sum64()
}

// RegistryFingerprint identifies every registered entity type; server and clients must agree on it
func RegistryFingerprint() uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, desc := range RegisteredEntityTypes() {
		binary.LittleEndian.PutUint64(buf[:], desc.Fingerprint())
		h.Write(buf[:])
	}
	return h.Sum64()
}
