package proto

import (
	"encoding/binary"
	"fmt"

	"github.com/Moddingdudes/Mirage-sub002/engine/common"
	"github.com/Moddingdudes/Mirage-sub002/engine/consts"
	"github.com/Moddingdudes/Mirage-sub002/engine/gwlog"
	"github.com/Moddingdudes/Mirage-sub002/engine/netutil"
	"github.com/Moddingdudes/Mirage-sub002/engine/netutil/compress"
	"github.com/Moddingdudes/Mirage-sub002/engine/opmon"
	"github.com/Moddingdudes/Mirage-sub002/engine/transport"
	"github.com/pkg/errors"
)

var packetEndian = binary.LittleEndian

// PeerConnection sends protocol messages to one peer through a transport
type PeerConnection struct {
	transport         transport.Transport
	peer              common.PeerID
	compressor        compress.Compressor
	compressThreshold int
}

// NewPeerConnection creates a PeerConnection, a nil compressor turns compression off
func NewPeerConnection(t transport.Transport, peer common.PeerID, compressor compress.Compressor, compressThreshold int) *PeerConnection {
	return &PeerConnection{
		transport:         t,
		peer:              peer,
		compressor:        compressor,
		compressThreshold: compressThreshold,
	}
}

func (pc *PeerConnection) String() string {
	return fmt.Sprintf("PeerConnection<%s>", pc.peer)
}

// Peer returns the remote peer
func (pc *PeerConnection) Peer() common.PeerID {
	return pc.peer
}

// NewPacket allocates a packet starting with the message type
func NewPacket(msgtype MsgType) *netutil.Packet {
	packet := netutil.NewPacket()
	packet.AppendUint16(uint16(msgtype))
	return packet
}

// SendHello sends MT_HELLO message
func (pc *PeerConnection) SendHello(assigned common.PeerID, fingerprint uint64) error {
	packet := NewPacket(MT_HELLO)
	packet.AppendPeerID(assigned)
	packet.AppendUint64(fingerprint)
	return pc.SendPacketRelease(packet, transport.Reliable)
}

// SendSpawnEntity sends MT_SPAWN_ENTITY message
func (pc *PeerConnection) SendSpawnEntity(id common.NetID, typeName string, owner common.PeerID, initial []byte) error {
	packet := NewPacket(MT_SPAWN_ENTITY)
	packet.AppendNetID(id)
	packet.AppendVarStr(typeName)
	packet.AppendPeerID(owner)
	packet.AppendVarBytes(initial)
	return pc.SendPacketRelease(packet, transport.Reliable)
}

// SendDestroyEntity sends MT_DESTROY_ENTITY message
func (pc *PeerConnection) SendDestroyEntity(id common.NetID) error {
	packet := NewPacket(MT_DESTROY_ENTITY)
	packet.AppendNetID(id)
	return pc.SendPacketRelease(packet, transport.Reliable)
}

// SendPacket compresses the packet if it is large enough and sends it to the peer
func (pc *PeerConnection) SendPacket(packet *netutil.Packet, reliability transport.Reliability) error {
	msgtype := MT_INVALID
	if !packet.IsCompressed() && packet.GetPayloadLen() >= 2 {
		msgtype = MsgType(packetEndian.Uint16(packet.Payload()))
	}
	if pc.compressor != nil {
		packet.Compress(pc.compressor, pc.compressThreshold)
	}
	data := packet.Data()
	if consts.DEBUG_PACKETS {
		gwlog.Debugf("%s: send %d bytes, compressed=%v", pc, len(data), packet.IsCompressed())
	}
	opmon.RecordBytes("send."+msgtype.String(), len(data))
	return pc.transport.Send(pc.peer, data, reliability)
}

// SendPacketRelease sends a packet to remote and then releases the packet
func (pc *PeerConnection) SendPacketRelease(packet *netutil.Packet, reliability transport.Reliability) error {
	err := pc.SendPacket(packet, reliability)
	packet.Release()
	return err
}

// RecvPacket parses received data into a packet and retrieves the message type
func RecvPacket(data []byte, compressor compress.Compressor) (*netutil.Packet, MsgType, error) {
	packet, err := netutil.NewPacketFromData(data)
	if err != nil {
		return nil, MT_INVALID, err
	}
	if packet.IsCompressed() {
		if compressor == nil {
			packet.Release()
			return nil, MT_INVALID, errors.Wrap(netutil.ErrMalformedPacket, "compressed packet but compression is off")
		}
		if err := packet.Decompress(compressor); err != nil {
			packet.Release()
			return nil, MT_INVALID, err
		}
	}
	if packet.GetPayloadLen() < 2 {
		packet.Release()
		return nil, MT_INVALID, errors.Wrap(netutil.ErrMalformedPacket, "missing message type")
	}

	msgtype := MsgType(packet.ReadUint16())
	opmon.RecordBytes("recv."+msgtype.String(), len(data))
	if consts.DEBUG_PACKETS {
		gwlog.Debugf("Recv msgtype=%v, payload size=%d", msgtype, packet.GetPayloadLen())
	}
	return packet, msgtype, nil
}

// ReadHello reads the body of MT_HELLO message
func ReadHello(packet *netutil.Packet) (assigned common.PeerID, fingerprint uint64) {
	assigned = packet.ReadPeerID()
	fingerprint = packet.ReadUint64()
	return
}

// ReadSpawnEntity reads the body of MT_SPAWN_ENTITY message
func ReadSpawnEntity(packet *netutil.Packet) (id common.NetID, typeName string, owner common.PeerID, initial []byte) {
	id = packet.ReadNetID()
	typeName = packet.ReadVarStr()
	owner = packet.ReadPeerID()
	initial = packet.ReadVarBytes()
	return
}

// ReadDestroyEntity reads the body of MT_DESTROY_ENTITY message
func ReadDestroyEntity(packet *netutil.Packet) common.NetID {
	return packet.ReadNetID()
}
