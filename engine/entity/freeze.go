package entity

import (
	"github.com/Moddingdudes/Mirage-sub002/engine/common"
	"github.com/Moddingdudes/Mirage-sub002/engine/gwlog"
	"github.com/Moddingdudes/Mirage-sub002/engine/gwutils"
	"github.com/Moddingdudes/Mirage-sub002/engine/netutil"
	"github.com/Moddingdudes/Mirage-sub002/engine/syncvar"
	"github.com/pkg/errors"
)

// FreezeData is the data structure for storing entity freeze data
type FreezeData struct {
	NextNetID   common.NetID        `msgpack:"next"`
	Fingerprint uint64              `msgpack:"fp"`
	Entities    []*entityFreezeData `msgpack:"entities"`
}

type entityFreezeData struct {
	ID     common.NetID             `msgpack:"id"`
	Type   string                   `msgpack:"type"`
	Owner  common.PeerID            `msgpack:"owner"`
	Groups []map[string]interface{} `msgpack:"groups"`
}

// Freeze dumps all entities of the server so that they can be restored by a new process
//
// Observers and pending dirty state are not frozen: clients must reconnect after the restore.
func (em *EntityManager) Freeze() ([]byte, error) {
	if !em.isServer {
		return nil, ErrNotServer
	}
	freeze := FreezeData{
		NextNetID:   em.nextNetID,
		Fingerprint: RegistryFingerprint(),
	}
	em.entities.Traverse(func(e *Entity) {
		fd := &entityFreezeData{
			ID:     e.ID,
			Type:   e.TypeName,
			Owner:  e.Owner,
			Groups: make([]map[string]interface{}, len(e.groups)),
		}
		for i, g := range e.groups {
			fd.Groups[i] = g.DumpValues()
		}
		freeze.Entities = append(freeze.Entities, fd)
	})

	data, err := netutil.MSG_PACKER.PackMsg(&freeze, nil)
	if err != nil {
		return nil, errors.Wrap(err, "pack freeze data")
	}
	gwlog.Infof("%s: %d entities freezed, %d bytes", em, len(freeze.Entities), len(data))
	return data, nil
}

// Restore recreates the entities dumped by Freeze
//
// The manager must be a server without entities. Owners that are not connected are replaced by the server.
func (em *EntityManager) Restore(data []byte) (err error) {
	if !em.isServer {
		return ErrNotServer
	}
	if em.entities.Len() > 0 {
		return errors.Errorf("%s: restore with %d live entities", em, em.entities.Len())
	}

	var freeze FreezeData
	if err = netutil.MSG_PACKER.UnpackMsg(data, &freeze); err != nil {
		return errors.Wrap(err, "unpack freeze data")
	}
	if local := RegistryFingerprint(); freeze.Fingerprint != local {
		return errors.Wrapf(ErrFingerprintMismatch, "freezed %016x, local %016x", freeze.Fingerprint, local)
	}

	restored := make([]*Entity, 0, len(freeze.Entities))
	seen := map[common.NetID]bool{}
	if perr := gwutils.CatchPanic(func() {
		for _, fd := range freeze.Entities {
			if seen[fd.ID] {
				err = errors.Errorf("restore %s: duplicate id %s", fd.Type, fd.ID)
				return
			}
			seen[fd.ID] = true
			var e *Entity
			if e, err = em.restoreEntity(fd); err != nil {
				return
			}
			restored = append(restored, e)
		}
	}); perr != nil {
		err = errors.Wrap(perr, "panic during restore")
	}
	if err != nil {
		return err
	}

	for _, e := range restored {
		em.putEntity(e)
		if id := e.ID; id >= em.nextNetID {
			em.nextNetID = id + 1
		}
	}
	if freeze.NextNetID > em.nextNetID {
		em.nextNetID = freeze.NextNetID
	}
	gwlog.Infof("%s: %d entities restored", em, len(restored))
	return nil
}

func (em *EntityManager) restoreEntity(fd *entityFreezeData) (*Entity, error) {
	desc := GetEntityTypeDesc(fd.Type)
	if desc == nil {
		return nil, errors.Wrapf(ErrUnknownEntityType, "restore %s<%s>", fd.Type, fd.ID)
	}
	if fd.ID == common.InvalidNetID {
		return nil, errors.Errorf("restore %s with invalid id", fd.Type)
	}
	if len(fd.Groups) != desc.NumGroups() {
		return nil, errors.Errorf("restore %s<%s>: %d groups, %d expected", fd.Type, fd.ID, len(fd.Groups), desc.NumGroups())
	}

	owner := fd.Owner
	if _, ok := em.peers[owner]; !ok && !owner.IsServer() {
		owner = common.ServerPeerID
	}
	e := newEntity(desc, fd.ID, owner, syncvar.RoleServer, em)
	for i, values := range fd.Groups {
		if err := e.groups[i].LoadValues(values); err != nil {
			return nil, errors.Wrapf(err, "restore %s", e)
		}
	}
	return e, nil
}
