package main

import (
	"math/rand"
	"sync"

	"github.com/Moddingdudes/Mirage-sub002/engine/common"
	"github.com/Moddingdudes/Mirage-sub002/engine/entity"
	"github.com/Moddingdudes/Mirage-sub002/engine/gwlog"
	"github.com/Moddingdudes/Mirage-sub002/engine/packer"
	"github.com/Moddingdudes/Mirage-sub002/engine/syncvar"
)

const (
	_WORLD_SIZE  = 512
	_NPC_COUNT   = 8
	_MOVE_SPEED  = 4
	_MAX_HEALTH  = 100
	_START_LEVEL = 1
)

var (
	worldBounds    = packer.Vector3{X: _WORLD_SIZE, Y: 64, Z: _WORLD_SIZE}
	worldPrecision = packer.Vector3{X: 0.01, Y: 0.01, Z: 0.01}

	characterSchema *syncvar.Schema
	playerSchema    *syncvar.Schema
	inputSchema     *syncvar.Schema

	registerOnce sync.Once
)

func onHealthChanged(obj *syncvar.Object, old, new interface{}) {
	gwlog.Debugf("%v: health %v => %v", obj.Context(), old, new)
}

func onTargetChanged(obj *syncvar.Object, old, new interface{}) {
	target, ok := obj.ResolveRef("target")
	gwlog.Debugf("%v: target %v => %v (resolved %v %v)", obj.Context(), old, new, target, ok)
}

// registerDemoTypes registers Character, an NPC, and Player, a client avatar extending it
func registerDemoTypes() {
	registerOnce.Do(func() {
		characterSchema = syncvar.NewSchema("Character").
			Field("health", syncvar.Uint(7), syncvar.WithHook(onHealthChanged)).
			Field("position", syncvar.Vector3(worldBounds, worldPrecision)).
			Field("rotation", syncvar.Quaternion(9)).
			MustBuild()
		playerSchema = syncvar.NewSchema("Player").Extends(characterSchema).
			Field("name", syncvar.String()).
			Field("target", syncvar.Ref(), syncvar.WithHook(onTargetChanged)).
			Field("level", syncvar.VarUint(4), syncvar.InitialOnly()).
			MustBuild()
		inputSchema = syncvar.NewSchema("PlayerInput").
			Direction(syncvar.SyncDirection{From: syncvar.Owner, To: syncvar.Server | syncvar.ObserversOnly}).
			Field("move", syncvar.Vector3(packer.Vector3{X: 1, Y: 1, Z: 1}, packer.Vector3{X: 0.01, Y: 0.01, Z: 0.01})).
			MustBuild()

		entity.RegisterEntity("Character", characterSchema)
		entity.RegisterEntity("Player", playerSchema, inputSchema).SetDestroyWithOwner(true)
	})
}

func randomPosition() packer.Vector3 {
	return packer.Vector3{
		X: (rand.Float32()*2 - 1) * _WORLD_SIZE,
		Z: (rand.Float32()*2 - 1) * _WORLD_SIZE,
	}
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func moveBy(pos, dir packer.Vector3, speed float32) packer.Vector3 {
	return packer.Vector3{
		X: clamp(pos.X+dir.X*speed, -_WORLD_SIZE, _WORLD_SIZE),
		Y: pos.Y,
		Z: clamp(pos.Z+dir.Z*speed, -_WORLD_SIZE, _WORLD_SIZE),
	}
}

// demoWorld is the server side of the demo: wandering NPCs and one Player per client
type demoWorld struct {
	em   *entity.EntityManager
	npcs []common.NetID
}

func newDemoWorld(em *entity.EntityManager) *demoWorld {
	w := &demoWorld{em: em}
	em.SetConnectCallback(w.onClientConnected)
	return w
}

func (w *demoWorld) spawnNPCs() {
	for _, e := range w.em.Entities() {
		if e.TypeName == "Character" {
			w.npcs = append(w.npcs, e.ID)
		}
	}
	for len(w.npcs) < _NPC_COUNT {
		e, err := w.em.SpawnWithData("Character", common.ServerPeerID, map[string]interface{}{
			"health":   _MAX_HEALTH,
			"position": randomPosition(),
		})
		if err != nil {
			gwlog.Errorf("spawn npc failed: %v", err)
			return
		}
		w.npcs = append(w.npcs, e.ID)
	}
}

func (w *demoWorld) onClientConnected(peer common.PeerID) {
	// observe everything that already exists
	for _, e := range w.em.Entities() {
		if err := w.em.AddObserver(e.ID, peer); err != nil {
			gwlog.Errorf("add observer %s to %s failed: %v", peer, e, err)
		}
	}

	player, err := w.em.SpawnWithData("Player", peer, map[string]interface{}{
		"name":     peer.String(),
		"health":   _MAX_HEALTH,
		"level":    _START_LEVEL,
		"position": randomPosition(),
	})
	if err != nil {
		gwlog.Errorf("spawn player of %s failed: %v", peer, err)
		return
	}
	for _, other := range w.em.Peers() {
		if other != peer {
			w.em.AddObserver(player.ID, other)
		}
	}
	showMsg("%s joined as %s", peer, player)
}

// tick moves NPCs randomly and players along their input
func (w *demoWorld) tick() {
	for _, e := range w.em.Entities() {
		pos := e.Get("position").(packer.Vector3)
		switch e.TypeName {
		case "Character":
			dir := packer.Vector3{X: rand.Float32()*2 - 1, Z: rand.Float32()*2 - 1}
			e.Set("position", moveBy(pos, dir, 1))
			if rand.Intn(10) == 0 {
				e.Set("health", rand.Intn(_MAX_HEALTH+1))
			}
		case "Player":
			dir := e.Get("move").(packer.Vector3)
			e.Set("position", moveBy(pos, dir, _MOVE_SPEED))
			if len(w.npcs) > 0 {
				e.Set("target", w.npcs[rand.Intn(len(w.npcs))])
			}
		}
	}
}

// demoClient steers the Player owned by this client
type demoClient struct {
	em *entity.EntityManager
}

func newDemoClient(em *entity.EntityManager) *demoClient {
	c := &demoClient{em: em}
	em.SetSpawnCallback(func(e *entity.Entity) {
		showMsg("spawned %s owner=%s health=%v", e, e.Owner, e.Get("health"))
	})
	em.SetDestroyCallback(func(e *entity.Entity) {
		showMsg("destroyed %s", e)
	})
	return c
}

func (c *demoClient) tick() {
	for _, e := range c.em.Entities() {
		if e.TypeName != "Player" || e.Owner != c.em.LocalPeer() {
			continue
		}
		move := packer.Vector3{X: rand.Float32()*2 - 1, Z: rand.Float32()*2 - 1}
		if err := e.Set("move", move); err != nil {
			gwlog.Errorf("%s: steer failed: %v", e, err)
		}
	}
}
