package entity

import (
	"fmt"
	"math/bits"
	"sort"

	"github.com/Moddingdudes/Mirage-sub002/engine/bitstream"
	"github.com/Moddingdudes/Mirage-sub002/engine/common"
	"github.com/Moddingdudes/Mirage-sub002/engine/syncvar"
	"github.com/pkg/errors"
)

// Entity is one replicated object: a NetID, an owner and one syncvar object per field group
type Entity struct {
	ID        common.NetID
	TypeName  string
	Owner     common.PeerID
	typeDesc  *EntityTypeDesc
	groups    []*syncvar.Object
	observers common.PeerIDSet
	destroyed bool
}

func newEntity(desc *EntityTypeDesc, id common.NetID, owner common.PeerID, role syncvar.Role, resolver syncvar.Resolver) *Entity {
	e := &Entity{
		ID:        id,
		TypeName:  desc.name,
		Owner:     owner,
		typeDesc:  desc,
		groups:    make([]*syncvar.Object, len(desc.groups)),
		observers: common.PeerIDSet{},
	}
	for i, schema := range desc.groups {
		obj := syncvar.NewObject(schema)
		obj.SetRole(role)
		obj.SetResolver(resolver)
		obj.SetContext(e)
		e.groups[i] = obj
	}
	return e
}

func (e *Entity) String() string {
	return fmt.Sprintf("%s<%s>", e.TypeName, e.ID)
}

// NetID returns the NetID, so entities can be assigned to Ref fields
func (e *Entity) NetID() common.NetID {
	return e.ID
}

// TypeDesc returns the registered type of the entity
func (e *Entity) TypeDesc() *EntityTypeDesc {
	return e.typeDesc
}

// IsDestroyed returns if the entity is destroyed
func (e *Entity) IsDestroyed() bool {
	return e.destroyed
}

// NumGroups returns the number of field groups
func (e *Entity) NumGroups() int {
	return len(e.groups)
}

// Group returns the syncvar object of group i
func (e *Entity) Group(i int) *syncvar.Object {
	return e.groups[i]
}

// GroupByName returns the syncvar object of the group with the schema name, or nil
func (e *Entity) GroupByName(name string) *syncvar.Object {
	i, ok := e.typeDesc.GroupIndex(name)
	if !ok {
		return nil
	}
	return e.groups[i]
}

// FindField returns the first group declaring the field
func (e *Entity) FindField(field string) (*syncvar.Object, bool) {
	for _, g := range e.groups {
		if _, ok := g.Schema().FieldByName(field); ok {
			return g, true
		}
	}
	return nil, false
}

// Get returns a field value from the first group declaring it
func (e *Entity) Get(field string) interface{} {
	g, ok := e.FindField(field)
	if !ok {
		return nil
	}
	return g.Get(field)
}

// Set writes a field of the first group declaring it
func (e *Entity) Set(field string, v interface{}) error {
	g, ok := e.FindField(field)
	if !ok {
		return errors.Wrapf(syncvar.ErrUnknownField, "%s.%s", e, field)
	}
	return g.Set(field, v)
}

// loadData sets values by field name without marking them dirty
func (e *Entity) loadData(data map[string]interface{}) error {
	if len(data) == 0 {
		return nil
	}
	perGroup := make([]map[string]interface{}, len(e.groups))
	for field, v := range data {
		g, ok := e.FindField(field)
		if !ok {
			return errors.Wrapf(syncvar.ErrUnknownField, "%s.%s", e, field)
		}
		i, _ := e.typeDesc.GroupIndex(g.Schema().Name())
		if perGroup[i] == nil {
			perGroup[i] = map[string]interface{}{}
		}
		perGroup[i][field] = v
	}
	for i, values := range perGroup {
		if values == nil {
			continue
		}
		if err := e.groups[i].LoadValues(values); err != nil {
			return err
		}
	}
	return nil
}

// IsDirty checks if any group has values waiting to be sent
func (e *Entity) IsDirty() bool {
	for _, g := range e.groups {
		if g.IsDirty() {
			return true
		}
	}
	return false
}

// Observers returns the observing peers in ascending order
func (e *Entity) Observers() []common.PeerID {
	peers := e.observers.ToList()
	sort.Slice(peers, func(i, j int) bool {
		return peers[i] < peers[j]
	})
	return peers
}

// IsObservedBy checks if the peer receives this entity
func (e *Entity) IsObservedBy(peer common.PeerID) bool {
	return e.observers.Contains(peer)
}

func (e *Entity) setRole(role syncvar.Role) {
	for _, g := range e.groups {
		g.SetRole(role)
	}
}

// writeInitial writes a group mask followed by the initial body of every group the recipient may receive
func (e *Entity) writeInitial(w *bitstream.Writer, recipient syncvar.RecipientSet) {
	var groupMask uint64
	for i, g := range e.groups {
		if syncvar.InitialRecipients(g.Schema().Direction()).Has(recipient) {
			groupMask |= 1 << uint(i)
		}
	}
	w.Write(groupMask, len(e.groups))
	for m := groupMask; m != 0; m &= m - 1 {
		syncvar.WriteInitial(w, e.groups[bits.TrailingZeros64(m)])
	}
}

// writeDelta writes a group mask followed by the delta of every group with a non-zero field mask
func (e *Entity) writeDelta(w *bitstream.Writer, masks []uint64) {
	var groupMask uint64
	for i, m := range masks {
		if m != 0 {
			groupMask |= 1 << uint(i)
		}
	}
	w.Write(groupMask, len(e.groups))
	for m := groupMask; m != 0; m &= m - 1 {
		i := bits.TrailingZeros64(m)
		syncvar.WriteDelta(w, e.groups[i], masks[i])
	}
}

// applyInitial decodes the initial bodies of the groups in the group mask, then applies them without hooks
//
// Groups left out of the mask keep their zero values.
func (e *Entity) applyInitial(data []byte) error {
	r := bitstream.NewReader(data)
	groupMask, err := r.Read(len(e.groups))
	if err != nil {
		return &syncvar.DesyncError{Schema: e.TypeName, Reason: "read initial group mask", Cause: err}
	}

	updates := make([]*syncvar.Update, 0, bits.OnesCount64(groupMask))
	for m := groupMask; m != 0; m &= m - 1 {
		u, err := syncvar.DecodeInitial(r, e.groups[bits.TrailingZeros64(m)])
		if err != nil {
			return errors.Wrapf(err, "%s initial", e)
		}
		updates = append(updates, u)
	}
	if err := syncvar.CheckTrailing(r, e.groups[len(e.groups)-1]); err != nil {
		return errors.Wrapf(err, "%s initial", e)
	}
	for _, u := range updates {
		u.Apply()
	}
	return nil
}

// applyDelta decodes a whole entity delta, then applies every group in order
func (e *Entity) applyDelta(data []byte) error {
	r := bitstream.NewReader(data)
	groupMask, err := r.Read(len(e.groups))
	if err != nil {
		return &syncvar.DesyncError{Schema: e.TypeName, Reason: "read group mask", Cause: err}
	}

	updates := make([]*syncvar.Update, 0, bits.OnesCount64(groupMask))
	for m := groupMask; m != 0; m &= m - 1 {
		u, err := syncvar.DecodeDelta(r, e.groups[bits.TrailingZeros64(m)])
		if err != nil {
			return errors.Wrapf(err, "%s delta", e)
		}
		updates = append(updates, u)
	}
	if err := syncvar.CheckTrailing(r, e.groups[len(e.groups)-1]); err != nil {
		return errors.Wrapf(err, "%s delta", e)
	}
	for _, u := range updates {
		u.Apply()
	}
	return nil
}
