package entity

import (
	"github.com/Moddingdudes/Mirage-sub002/engine/common"
	"github.com/petar/GoLLRB/llrb"
)

// netIDKey is a lookup pivot in the entity index
type netIDKey common.NetID

func itemNetID(item llrb.Item) common.NetID {
	switch x := item.(type) {
	case *Entity:
		return x.ID
	case netIDKey:
		return common.NetID(x)
	default:
		return common.InvalidNetID
	}
}

func (k netIDKey) Less(other llrb.Item) bool {
	return common.NetID(k) < itemNetID(other)
}

// Less orders entities by NetID in the index
func (e *Entity) Less(other llrb.Item) bool {
	return e.ID < itemNetID(other)
}

// EntityMap keeps entities by NetID, traversed in NetID order
type EntityMap struct {
	byID map[common.NetID]*Entity
	tree *llrb.LLRB
}

func newEntityMap() *EntityMap {
	return &EntityMap{
		byID: map[common.NetID]*Entity{},
		tree: llrb.New(),
	}
}

// Add adds a new entity to EntityMap
func (em *EntityMap) Add(entity *Entity) {
	em.byID[entity.ID] = entity
	em.tree.ReplaceOrInsert(entity)
}

// Del deletes an entity from EntityMap
func (em *EntityMap) Del(id common.NetID) {
	if _, ok := em.byID[id]; !ok {
		return
	}
	delete(em.byID, id)
	em.tree.Delete(netIDKey(id))
}

// Get returns the Entity of specified NetID in EntityMap
func (em *EntityMap) Get(id common.NetID) *Entity {
	return em.byID[id]
}

// Len returns the number of entities
func (em *EntityMap) Len() int {
	return len(em.byID)
}

// Traverse calls f for every entity in NetID order. f must not add or delete entities.
func (em *EntityMap) Traverse(f func(e *Entity)) {
	em.tree.AscendGreaterOrEqual(netIDKey(common.InvalidNetID), func(item llrb.Item) bool {
		f(item.(*Entity))
		return true
	})
}

// List returns all entities in NetID order
func (em *EntityMap) List() []*Entity {
	list := make([]*Entity, 0, len(em.byID))
	em.Traverse(func(e *Entity) {
		list = append(list, e)
	})
	return list
}
