package entity

import (
	"fmt"
	"sort"

	"github.com/Moddingdudes/Mirage-sub002/engine/bitstream"
	"github.com/Moddingdudes/Mirage-sub002/engine/common"
	"github.com/Moddingdudes/Mirage-sub002/engine/config"
	"github.com/Moddingdudes/Mirage-sub002/engine/consts"
	"github.com/Moddingdudes/Mirage-sub002/engine/gwlog"
	"github.com/Moddingdudes/Mirage-sub002/engine/netutil/compress"
	"github.com/Moddingdudes/Mirage-sub002/engine/proto"
	"github.com/Moddingdudes/Mirage-sub002/engine/syncvar"
	"github.com/Moddingdudes/Mirage-sub002/engine/transport"
	"github.com/pkg/errors"
)

// EntityCallback is called when an entity is spawned or destroyed locally
type EntityCallback func(e *Entity)

// PeerCallback is called when a peer connects
type PeerCallback func(peer common.PeerID)

// EntityManager owns the replicated entities of one host and moves their state over a transport
//
// Its methods must be called on the main routine. It implements transport.Handler.
type EntityManager struct {
	isServer   bool
	transport  transport.Transport
	syncConfig config.SyncConfig
	compressor compress.Compressor
	entities   *EntityMap
	nextNetID  common.NetID
	peers      map[common.PeerID]*proto.PeerConnection
	localPeer  common.PeerID // assigned by MT_HELLO on clients
	helloed    bool
	writer     *bitstream.Writer

	onSpawned   EntityCallback
	onDestroyed EntityCallback
	onConnected PeerCallback
}

// NewEntityManager creates an EntityManager, cfg may be nil to use the defaults
func NewEntityManager(t transport.Transport, isServer bool, cfg *config.SyncConfig) *EntityManager {
	if cfg == nil {
		cfg = &config.Default().Sync
	}
	format := cfg.CompressFormat
	if format == "" {
		format = "snappy"
	}
	em := &EntityManager{
		isServer:   isServer,
		transport:  t,
		syncConfig: *cfg,
		compressor: compress.NewCompressor(format),
		entities:   newEntityMap(),
		nextNetID:  common.InvalidNetID + 1,
		peers:      map[common.PeerID]*proto.PeerConnection{},
		writer:     bitstream.NewWriter(consts.MAX_PACKET_SIZE),
	}
	if isServer {
		em.localPeer = common.ServerPeerID
	}
	return em
}

func (em *EntityManager) String() string {
	if em.isServer {
		return "EntityManager<server>"
	}
	return fmt.Sprintf("EntityManager<client %s>", em.localPeer)
}

// SetTransport sets the transport, for transports that need the manager as their handler first
func (em *EntityManager) SetTransport(t transport.Transport) {
	em.transport = t
}

// SetSpawnCallback sets the function called after an entity is spawned locally
func (em *EntityManager) SetSpawnCallback(cb EntityCallback) {
	em.onSpawned = cb
}

// SetDestroyCallback sets the function called after an entity is destroyed locally
func (em *EntityManager) SetDestroyCallback(cb EntityCallback) {
	em.onDestroyed = cb
}

// SetConnectCallback sets the function called after a peer connects and is greeted
func (em *EntityManager) SetConnectCallback(cb PeerCallback) {
	em.onConnected = cb
}

// IsServer returns if this is the server host
func (em *EntityManager) IsServer() bool {
	return em.isServer
}

// LocalPeer returns the peer id of this host, valid on clients after MT_HELLO
func (em *EntityManager) LocalPeer() common.PeerID {
	return em.localPeer
}

// Peers returns the connected peers in ascending order
func (em *EntityManager) Peers() []common.PeerID {
	peers := make([]common.PeerID, 0, len(em.peers))
	for peer := range em.peers {
		peers = append(peers, peer)
	}
	sort.Slice(peers, func(i, j int) bool {
		return peers[i] < peers[j]
	})
	return peers
}

// GetEntity returns the entity of id, or nil
func (em *EntityManager) GetEntity(id common.NetID) *Entity {
	return em.entities.Get(id)
}

// Entities returns all entities in NetID order
func (em *EntityManager) Entities() []*Entity {
	return em.entities.List()
}

// NumEntities returns the number of entities
func (em *EntityManager) NumEntities() int {
	return em.entities.Len()
}

// Resolve implements syncvar.Resolver
func (em *EntityManager) Resolve(id common.NetID) (interface{}, bool) {
	e := em.entities.Get(id)
	if e == nil {
		return nil, false
	}
	return e, true
}

func (em *EntityManager) newPeerConnection(peer common.PeerID) *proto.PeerConnection {
	var compressor compress.Compressor
	if em.syncConfig.Compress {
		compressor = em.compressor
	}
	return proto.NewPeerConnection(em.transport, peer, compressor, em.syncConfig.CompressThreshold)
}

// Spawn creates an entity on the server, owned by owner or by nobody if owner is the server peer id
//
// A connected owner starts observing the entity right away.
func (em *EntityManager) Spawn(typeName string, owner common.PeerID) (*Entity, error) {
	return em.SpawnWithData(typeName, owner, nil)
}

// SpawnWithData creates an entity like Spawn with field values loaded before the initial state is sent
//
// Values of initial-only fields can only reach clients this way.
func (em *EntityManager) SpawnWithData(typeName string, owner common.PeerID, data map[string]interface{}) (*Entity, error) {
	if !em.isServer {
		return nil, ErrNotServer
	}
	desc := GetEntityTypeDesc(typeName)
	if desc == nil {
		return nil, errors.Wrapf(ErrUnknownEntityType, "spawn %s", typeName)
	}

	e := newEntity(desc, em.nextNetID, owner, syncvar.RoleServer, em)
	if err := e.loadData(data); err != nil {
		return nil, err
	}
	em.nextNetID++
	em.putEntity(e)

	if !owner.IsServer() {
		if _, ok := em.peers[owner]; ok {
			if err := em.AddObserver(e.ID, owner); err != nil {
				return e, err
			}
		} else {
			gwlog.Warnf("%s: owner %s of %s is not connected", em, owner, e)
		}
	}
	return e, nil
}

func (em *EntityManager) putEntity(e *Entity) {
	em.entities.Add(e)
	if consts.DEBUG_SPAWN {
		gwlog.Debugf("%s: spawned %s owner=%s", em, e, e.Owner)
	}
	if em.onSpawned != nil {
		em.onSpawned(e)
	}
}

func (em *EntityManager) delEntity(e *Entity) {
	e.destroyed = true
	em.entities.Del(e.ID)
	if consts.DEBUG_SPAWN {
		gwlog.Debugf("%s: destroyed %s", em, e)
	}
	if em.onDestroyed != nil {
		em.onDestroyed(e)
	}
}

// Destroy destroys the entity on the server and on every observer
func (em *EntityManager) Destroy(id common.NetID) error {
	if !em.isServer {
		return ErrNotServer
	}
	e := em.entities.Get(id)
	if e == nil {
		return errors.Wrapf(ErrUnknownEntity, "destroy %s", id)
	}

	var firstErr error
	for _, peer := range e.Observers() {
		if conn := em.peers[peer]; conn != nil {
			if err := conn.SendDestroyEntity(id); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	em.delEntity(e)
	return firstErr
}

// AddObserver makes peer receive the entity, starting with the current state of the groups it may see
func (em *EntityManager) AddObserver(id common.NetID, peer common.PeerID) error {
	if !em.isServer {
		return ErrNotServer
	}
	e := em.entities.Get(id)
	if e == nil {
		return errors.Wrapf(ErrUnknownEntity, "add observer to %s", id)
	}
	conn := em.peers[peer]
	if conn == nil {
		return errors.Wrapf(ErrPeerNotConnected, "add observer %s", peer)
	}
	if e.observers.Contains(peer) {
		return nil
	}

	recipient := syncvar.RecipientObservers
	if peer == e.Owner {
		recipient = syncvar.RecipientOwner
	}
	em.writer.Reset()
	e.writeInitial(em.writer, recipient)
	e.observers.Add(peer)
	return conn.SendSpawnEntity(e.ID, e.TypeName, e.Owner, em.writer.CopyBytes())
}

// RemoveObserver stops peer from receiving the entity and destroys it there
func (em *EntityManager) RemoveObserver(id common.NetID, peer common.PeerID) error {
	if !em.isServer {
		return ErrNotServer
	}
	e := em.entities.Get(id)
	if e == nil {
		return errors.Wrapf(ErrUnknownEntity, "remove observer from %s", id)
	}
	if !e.observers.Contains(peer) {
		return nil
	}
	e.observers.Del(peer)
	if conn := em.peers[peer]; conn != nil {
		return conn.SendDestroyEntity(id)
	}
	return nil
}

// OnPeerConnected greets a new client on the server, or records the server connection on a client
func (em *EntityManager) OnPeerConnected(peer common.PeerID) {
	gwlog.Infof("%s: %s connected", em, peer)
	conn := em.newPeerConnection(peer)
	em.peers[peer] = conn
	if em.isServer {
		if err := conn.SendHello(peer, RegistryFingerprint()); err != nil {
			gwlog.Errorf("%s: send hello to %s failed: %v", em, peer, err)
		}
	}
	if em.onConnected != nil {
		em.onConnected(peer)
	}
}

// OnPeerDisconnected drops the peer from every entity
//
// On the server, entities it owned are destroyed if their type says so and become ownerless otherwise.
// On a client, losing the server destroys every entity.
func (em *EntityManager) OnPeerDisconnected(peer common.PeerID) {
	gwlog.Infof("%s: %s disconnected", em, peer)
	delete(em.peers, peer)

	if !em.isServer {
		for _, e := range em.entities.List() {
			em.delEntity(e)
		}
		em.helloed = false
		return
	}

	for _, e := range em.entities.List() {
		e.observers.Del(peer)
		if e.Owner != peer {
			continue
		}
		if e.typeDesc.destroyWithOwner {
			if err := em.Destroy(e.ID); err != nil {
				gwlog.Errorf("%s: destroy %s failed: %v", em, e, err)
			}
		} else {
			e.Owner = common.ServerPeerID
		}
	}
}

// OnReceive handles a message and drops the peer if it cannot be trusted anymore
func (em *EntityManager) OnReceive(peer common.PeerID, data []byte) {
	err := em.HandlePacket(peer, data)
	if err == nil {
		return
	}

	gwlog.Errorf("%s: handle packet from %s failed: %v", em, peer, err)
	if isFatal(err) && em.transport != nil {
		em.transport.Disconnect(peer)
	}
}
