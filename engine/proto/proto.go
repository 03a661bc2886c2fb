package proto

import "fmt"

// MsgType is the type of message types
type MsgType uint16

const (
	// MT_INVALID is the invalid message type
	MT_INVALID MsgType = iota
	// MT_HELLO is sent by the server to a connected client with its assigned peer id and the registry fingerprint
	MT_HELLO
	// MT_SPAWN_ENTITY is sent by the server to create an entity on a client with its initial state
	MT_SPAWN_ENTITY
	// MT_DESTROY_ENTITY is sent by the server to destroy an entity on a client
	MT_DESTROY_ENTITY
	// MT_SYNC_VARS carries delta payloads of many entities, in both directions
	MT_SYNC_VARS
)

var msgTypeNames = map[MsgType]string{
	MT_INVALID:        "MT_INVALID",
	MT_HELLO:          "MT_HELLO",
	MT_SPAWN_ENTITY:   "MT_SPAWN_ENTITY",
	MT_DESTROY_ENTITY: "MT_DESTROY_ENTITY",
	MT_SYNC_VARS:      "MT_SYNC_VARS",
}

func (mt MsgType) String() string {
	if name, ok := msgTypeNames[mt]; ok {
		return name
	}
	return fmt.Sprintf("MsgType<%d>", uint16(mt))
}

const (
	// SYNC_VARS_ENTRY_OVERHEAD is the size of the NetID and the length prefix of one MT_SYNC_VARS entry
	SYNC_VARS_ENTRY_OVERHEAD = 8
	// PACKET_OVERHEAD is the size of the packet header and the message type
	PACKET_OVERHEAD = 6
)
