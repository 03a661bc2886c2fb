package proto

import (
	"github.com/Moddingdudes/Mirage-sub002/engine/common"
	"github.com/Moddingdudes/Mirage-sub002/engine/gwlog"
	"github.com/Moddingdudes/Mirage-sub002/engine/netutil"
	"github.com/Moddingdudes/Mirage-sub002/engine/transport"
)

// SyncVarsWriter batches entity deltas for one peer into MT_SYNC_VARS packets no larger than maxPacketSize
//
// An entry larger than a whole packet is sent alone.
type SyncVarsWriter struct {
	conn          *PeerConnection
	maxPacketSize int
	packet        *netutil.Packet
	entries       int
	packets       int
	err           error
}

// NewSyncVarsWriter creates a SyncVarsWriter sending through conn
func NewSyncVarsWriter(conn *PeerConnection, maxPacketSize int) *SyncVarsWriter {
	return &SyncVarsWriter{
		conn:          conn,
		maxPacketSize: maxPacketSize,
	}
}

// Add appends the delta of one entity
func (sw *SyncVarsWriter) Add(id common.NetID, delta []byte) {
	entrySize := SYNC_VARS_ENTRY_OVERHEAD + len(delta)
	if sw.packet != nil && PACKET_OVERHEAD+int(sw.packet.GetPayloadLen())-2+entrySize > sw.maxPacketSize {
		sw.Flush()
	}
	if sw.packet == nil {
		sw.packet = NewPacket(MT_SYNC_VARS)
		if PACKET_OVERHEAD+entrySize > sw.maxPacketSize {
			gwlog.Warnf("%s: delta of entity %s is %d bytes, larger than max packet size %d", sw.conn, id, len(delta), sw.maxPacketSize)
		}
	}
	sw.packet.AppendNetID(id)
	sw.packet.AppendVarBytes(delta)
	sw.entries++
}

// Flush sends the pending packet
func (sw *SyncVarsWriter) Flush() {
	if sw.packet == nil {
		return
	}
	packet := sw.packet
	sw.packet = nil
	sw.packets++
	if err := sw.conn.SendPacketRelease(packet, transport.Reliable); err != nil && sw.err == nil {
		sw.err = err
	}
}

// Entries returns the number of entries added
func (sw *SyncVarsWriter) Entries() int {
	return sw.entries
}

// Packets returns the number of packets sent
func (sw *SyncVarsWriter) Packets() int {
	return sw.packets
}

// Err returns the first send error
func (sw *SyncVarsWriter) Err() error {
	return sw.err
}

// ReadSyncVars calls f for every entry of MT_SYNC_VARS message
func ReadSyncVars(packet *netutil.Packet, f func(id common.NetID, delta []byte)) {
	for packet.HasUnreadPayload() {
		id := packet.ReadNetID()
		delta := packet.ReadVarBytes()
		f(id, delta)
	}
}
