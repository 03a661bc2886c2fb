package proto

import (
	"bytes"
	"testing"

	"github.com/Moddingdudes/Mirage-sub002/engine/common"
	"github.com/Moddingdudes/Mirage-sub002/engine/netutil"
	"github.com/Moddingdudes/Mirage-sub002/engine/netutil/compress"
	"github.com/Moddingdudes/Mirage-sub002/engine/post"
	"github.com/Moddingdudes/Mirage-sub002/engine/transport"
	"github.com/bmizerany/assert"
	"github.com/pkg/errors"
)

type collector struct {
	msgs [][]byte
}

func (c *collector) OnPeerConnected(peer common.PeerID)    {}
func (c *collector) OnPeerDisconnected(peer common.PeerID) {}
func (c *collector) OnReceive(peer common.PeerID, data []byte) {
	c.msgs = append(c.msgs, data)
}

func setup(t *testing.T, compressor compress.Compressor, threshold int) (*PeerConnection, *collector, *post.Queue) {
	q := post.NewQueue()
	server := transport.NewLoopbackServer(&collector{}, q)
	cc := &collector{}
	client, err := server.Connect(cc, q)
	assert.Equal(t, nil, err)
	return NewPeerConnection(server, client.PeerID(), compressor, threshold), cc, q
}

func recv(t *testing.T, data []byte, compressor compress.Compressor) (*netutil.Packet, MsgType) {
	packet, msgtype, err := RecvPacket(data, compressor)
	assert.Equal(t, nil, err)
	return packet, msgtype
}

func TestMsgTypeString(t *testing.T) {
	assert.Equal(t, "MT_SYNC_VARS", MT_SYNC_VARS.String())
	assert.Equal(t, "MsgType<99>", MsgType(99).String())
}

func TestSendMessages(t *testing.T) {
	pc, cc, q := setup(t, nil, 0)
	assert.Equal(t, nil, pc.SendHello(pc.Peer(), 0xCAFE))
	assert.Equal(t, nil, pc.SendSpawnEntity(7, "Player", pc.Peer(), []byte{1, 2}))
	assert.Equal(t, nil, pc.SendDestroyEntity(7))
	q.Tick()
	assert.Equal(t, 3, len(cc.msgs))

	p, mt := recv(t, cc.msgs[0], nil)
	assert.Equal(t, MT_HELLO, mt)
	assigned, fp := ReadHello(p)
	assert.Equal(t, pc.Peer(), assigned)
	assert.Equal(t, uint64(0xCAFE), fp)
	p.Release()

	p, mt = recv(t, cc.msgs[1], nil)
	assert.Equal(t, MT_SPAWN_ENTITY, mt)
	id, typeName, owner, initial := ReadSpawnEntity(p)
	assert.Equal(t, common.NetID(7), id)
	assert.Equal(t, "Player", typeName)
	assert.Equal(t, pc.Peer(), owner)
	assert.Equal(t, []byte{1, 2}, initial)
	p.Release()

	p, mt = recv(t, cc.msgs[2], nil)
	assert.Equal(t, MT_DESTROY_ENTITY, mt)
	assert.Equal(t, common.NetID(7), ReadDestroyEntity(p))
	p.Release()
}

func TestSyncVarsSplit(t *testing.T) {
	pc, cc, q := setup(t, nil, 0)
	const maxPacketSize = 100
	sw := NewSyncVarsWriter(pc, maxPacketSize)
	for i := 1; i <= 10; i++ {
		sw.Add(common.NetID(i), bytes.Repeat([]byte{byte(i)}, 20))
	}
	sw.Flush()
	assert.Equal(t, nil, sw.Err())
	assert.Equal(t, 10, sw.Entries())
	q.Tick()
	assert.Equal(t, sw.Packets(), len(cc.msgs))
	assert.T(t, len(cc.msgs) > 1)

	var ids []common.NetID
	for _, data := range cc.msgs {
		assert.T(t, len(data) <= maxPacketSize)
		p, mt := recv(t, data, nil)
		assert.Equal(t, MT_SYNC_VARS, mt)
		ReadSyncVars(p, func(id common.NetID, delta []byte) {
			assert.Equal(t, bytes.Repeat([]byte{byte(id)}, 20), delta)
			ids = append(ids, id)
		})
		p.Release()
	}
	assert.Equal(t, []common.NetID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, ids)
}

func TestSyncVarsOversizedEntry(t *testing.T) {
	pc, cc, q := setup(t, nil, 0)
	sw := NewSyncVarsWriter(pc, 50)
	sw.Add(1, []byte{1})
	sw.Add(2, make([]byte, 200))
	sw.Add(3, []byte{3})
	sw.Flush()
	q.Tick()
	assert.Equal(t, 3, len(cc.msgs))
}

func TestCompressedSend(t *testing.T) {
	c := compress.NewCompressor("snappy")
	pc, cc, q := setup(t, c, 64)
	sw := NewSyncVarsWriter(pc, 4096)
	sw.Add(1, make([]byte, 1000))
	sw.Flush()
	q.Tick()
	assert.Equal(t, 1, len(cc.msgs))
	assert.T(t, len(cc.msgs[0]) < 1000)

	_, _, err := RecvPacket(cc.msgs[0], nil)
	assert.Equal(t, netutil.ErrMalformedPacket, errors.Cause(err))

	p, mt := recv(t, cc.msgs[0], c)
	assert.Equal(t, MT_SYNC_VARS, mt)
	n := 0
	ReadSyncVars(p, func(id common.NetID, delta []byte) {
		assert.Equal(t, common.NetID(1), id)
		assert.Equal(t, 1000, len(delta))
		n++
	})
	assert.Equal(t, 1, n)
	p.Release()
}

func TestRecvMalformed(t *testing.T) {
	_, _, err := RecvPacket([]byte{1, 2}, nil)
	assert.Equal(t, netutil.ErrMalformedPacket, errors.Cause(err))
	_, _, err = RecvPacket([]byte{0, 0, 0, 0}, nil)
	assert.Equal(t, netutil.ErrMalformedPacket, errors.Cause(err))
}
