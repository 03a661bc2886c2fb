package entity

import (
	"github.com/Moddingdudes/Mirage-sub002/engine/common"
	"github.com/Moddingdudes/Mirage-sub002/engine/consts"
	"github.com/Moddingdudes/Mirage-sub002/engine/gwlog"
	"github.com/Moddingdudes/Mirage-sub002/engine/gwutils"
	"github.com/Moddingdudes/Mirage-sub002/engine/netutil"
	"github.com/Moddingdudes/Mirage-sub002/engine/opmon"
	"github.com/Moddingdudes/Mirage-sub002/engine/proto"
	"github.com/Moddingdudes/Mirage-sub002/engine/syncvar"
	"github.com/pkg/errors"
)

// CollectSyncInfos is called every sync interval to send the dirty state of all entities and clear it
//
// The server sends server writes to the owner and observers and relays owner writes to observers.
// A client sends writes to the entities it owns to the server.
func (em *EntityManager) CollectSyncInfos() {
	op := opmon.StartOperation("CollectSyncInfos")
	defer op.Finish(consts.SYNC_FLUSH_WARN_THRESHOLD)

	writers := map[common.PeerID]*proto.SyncVarsWriter{}
	getWriter := func(peer common.PeerID) *proto.SyncVarsWriter {
		sw := writers[peer]
		if sw == nil {
			conn := em.peers[peer]
			if conn == nil {
				return nil
			}
			sw = proto.NewSyncVarsWriter(conn, em.syncConfig.MaxPacketSize)
			writers[peer] = sw
		}
		return sw
	}

	em.entities.Traverse(func(e *Entity) {
		if !e.IsDirty() {
			return
		}
		if em.isServer {
			em.collectServerEntity(e, getWriter)
		} else {
			em.collectClientEntity(e, getWriter)
		}
	})

	for _, peer := range em.Peers() {
		sw := writers[peer]
		if sw == nil {
			continue
		}
		sw.Flush()
		if err := sw.Err(); err != nil {
			gwlog.Errorf("%s: sync to %s failed: %v", em, peer, err)
		}
		if consts.DEBUG_SYNC {
			gwlog.Debugf("%s: synced %d entities to %s in %d packets", em, sw.Entries(), peer, sw.Packets())
		}
	}
}

func (em *EntityManager) collectServerEntity(e *Entity, getWriter func(peer common.PeerID) *proto.SyncVarsWriter) {
	ownerMasks := make([]uint64, len(e.groups))
	observerMasks := make([]uint64, len(e.groups))
	var toOwner, toObservers bool
	for i, g := range e.groups {
		dir := g.Schema().Direction()
		dirty := g.ConsumeMask()
		relay := g.ConsumeRelayMask()

		recipients := syncvar.Recipients(syncvar.RoleServer, dir)
		if recipients.Has(syncvar.RecipientOwner) {
			ownerMasks[i] = dirty
		}
		if recipients.Has(syncvar.RecipientObservers) {
			observerMasks[i] = dirty
		}
		// owner writes are never echoed back to the owner
		if syncvar.RelayRecipients(dir).Has(syncvar.RecipientObservers) {
			observerMasks[i] |= relay
		}
		toOwner = toOwner || ownerMasks[i] != 0
		toObservers = toObservers || observerMasks[i] != 0
	}

	var ownerDelta, observerDelta []byte
	if toOwner {
		ownerDelta = em.encodeDelta(e, ownerMasks)
	}
	if toObservers {
		observerDelta = em.encodeDelta(e, observerMasks)
	}
	if consts.DEBUG_SYNC {
		gwlog.Debugf("%s: collect %s owner=%x observers=%x", em, e, ownerMasks, observerMasks)
	}

	for _, peer := range e.Observers() {
		delta := observerDelta
		if peer == e.Owner {
			delta = ownerDelta
		}
		if delta == nil {
			continue
		}
		if sw := getWriter(peer); sw != nil {
			sw.Add(e.ID, delta)
		}
	}
}

func (em *EntityManager) collectClientEntity(e *Entity, getWriter func(peer common.PeerID) *proto.SyncVarsWriter) {
	if e.Owner != em.localPeer {
		return
	}
	masks := make([]uint64, len(e.groups))
	var dirty bool
	for i, g := range e.groups {
		if syncvar.Recipients(syncvar.RoleOwner, g.Schema().Direction()).Has(syncvar.RecipientServer) {
			masks[i] = g.ConsumeMask()
			dirty = dirty || masks[i] != 0
		} else {
			g.ClearDirty()
		}
	}
	if !dirty {
		return
	}
	if sw := getWriter(common.ServerPeerID); sw != nil {
		sw.Add(e.ID, em.encodeDelta(e, masks))
	}
}

func (em *EntityManager) encodeDelta(e *Entity, masks []uint64) []byte {
	em.writer.Reset()
	e.writeDelta(em.writer, masks)
	return em.writer.CopyBytes()
}

// HandlePacket parses and handles one received message
func (em *EntityManager) HandlePacket(peer common.PeerID, data []byte) (err error) {
	packet, msgtype, err := proto.RecvPacket(data, em.compressor)
	if err != nil {
		return errors.Wrapf(err, "from %s", peer)
	}
	defer packet.Release()

	op := opmon.StartOperation("Handle" + msgtype.String())
	defer op.Finish(consts.SYNC_FLUSH_WARN_THRESHOLD)

	if perr := gwutils.CatchPanic(func() {
		err = em.handleMsg(peer, msgtype, packet)
	}); perr != nil {
		return errors.Wrapf(perr, "%s from %s", msgtype, peer)
	}
	return err
}

func (em *EntityManager) handleMsg(peer common.PeerID, msgtype proto.MsgType, packet *netutil.Packet) error {
	if em.isServer {
		if msgtype != proto.MT_SYNC_VARS {
			return errors.Wrapf(ErrUnexpectedMessage, "%s from %s", msgtype, peer)
		}
		return em.handleSyncVars(peer, packet)
	}

	if !peer.IsServer() {
		return errors.Wrapf(ErrUnexpectedMessage, "%s from %s", msgtype, peer)
	}
	if msgtype != proto.MT_HELLO && !em.helloed {
		return errors.Wrapf(ErrUnexpectedMessage, "%s before %s", msgtype, proto.MT_HELLO)
	}
	switch msgtype {
	case proto.MT_HELLO:
		return em.handleHello(packet)
	case proto.MT_SPAWN_ENTITY:
		return em.handleSpawnEntity(packet)
	case proto.MT_DESTROY_ENTITY:
		return em.handleDestroyEntity(packet)
	case proto.MT_SYNC_VARS:
		return em.handleSyncVars(peer, packet)
	}
	return errors.Wrapf(ErrUnexpectedMessage, "%s from %s", msgtype, peer)
}

func (em *EntityManager) handleHello(packet *netutil.Packet) error {
	assigned, fingerprint := proto.ReadHello(packet)
	if local := RegistryFingerprint(); fingerprint != local {
		return errors.Wrapf(ErrFingerprintMismatch, "server %016x, local %016x", fingerprint, local)
	}
	em.localPeer = assigned
	em.helloed = true
	gwlog.Infof("%s: hello from server", em)
	return nil
}

func (em *EntityManager) handleSpawnEntity(packet *netutil.Packet) error {
	id, typeName, owner, initial := proto.ReadSpawnEntity(packet)
	desc := GetEntityTypeDesc(typeName)
	if desc == nil {
		return errors.Wrapf(ErrUnknownEntityType, "spawn %s<%s>", typeName, id)
	}
	if old := em.entities.Get(id); old != nil {
		gwlog.Warnf("%s: spawn %s<%s> replaces %s", em, typeName, id, old)
		em.delEntity(old)
	}

	role := syncvar.RoleObserver
	if owner == em.localPeer {
		role = syncvar.RoleOwner
	}
	e := newEntity(desc, id, owner, role, em)
	if err := e.applyInitial(initial); err != nil {
		return err
	}
	em.putEntity(e)
	return nil
}

func (em *EntityManager) handleDestroyEntity(packet *netutil.Packet) error {
	id := proto.ReadDestroyEntity(packet)
	e := em.entities.Get(id)
	if e == nil {
		gwlog.Warnf("%s: destroy unknown entity %s", em, id)
		return nil
	}
	em.delEntity(e)
	return nil
}

func (em *EntityManager) handleSyncVars(peer common.PeerID, packet *netutil.Packet) error {
	var err error
	proto.ReadSyncVars(packet, func(id common.NetID, delta []byte) {
		if err != nil {
			return
		}
		e := em.entities.Get(id)
		if e == nil {
			// destroyed while the delta was in flight
			if consts.DEBUG_SYNC {
				gwlog.Debugf("%s: sync vars of unknown entity %s from %s", em, id, peer)
			}
			return
		}
		if em.isServer && e.Owner != peer {
			gwlog.Warnf("%s: %v", em, errors.Wrapf(ErrNotOwner, "%s sent sync vars of %s owned by %s", peer, e, e.Owner))
			return
		}
		err = e.applyDelta(delta)
	})
	return err
}

// isFatal checks if the connection must be dropped after the error
func isFatal(err error) bool {
	if syncvar.IsDesync(err) {
		return true
	}
	switch errors.Cause(err) {
	case netutil.ErrMalformedPacket, netutil.ErrPacketTruncated, ErrFingerprintMismatch, ErrUnexpectedMessage, ErrUnknownEntityType:
		return true
	}
	return false
}
