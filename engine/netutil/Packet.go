package netutil

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/Moddingdudes/Mirage-sub002/engine/common"
	"github.com/Moddingdudes/Mirage-sub002/engine/consts"
	"github.com/Moddingdudes/Mirage-sub002/engine/gwlog"
	"github.com/Moddingdudes/Mirage-sub002/engine/netutil/compress"
	"github.com/pkg/errors"
)

const (
	_MIN_PAYLOAD_CAP = 128
	_PREPAYLOAD_SIZE = 4

	_PAYLOAD_LEN_MASK            = 0x7FFFFFFF
	_PAYLOAD_COMPRESSED_BIT_MASK = 0x80000000

	// MAX_PAYLOAD_LENGTH is the largest payload a packet can carry
	MAX_PAYLOAD_LENGTH = _PAYLOAD_LEN_MASK
)

var (
	// ErrPacketTruncated is the cause of panics when reading past the payload
	ErrPacketTruncated = errors.New("packet truncated")
	// ErrMalformedPacket is returned for received data whose header does not match its length
	ErrMalformedPacket = errors.New("malformed packet")

	packetEndian = binary.LittleEndian

	debugInfo struct {
		NewCount     int64
		AllocCount   int64
		ReleaseCount int64
	}

	packetPool = sync.Pool{
		New: func() interface{} {
			p := &Packet{
				bytes: make([]byte, _PREPAYLOAD_SIZE, _PREPAYLOAD_SIZE+_MIN_PAYLOAD_CAP),
			}
			if consts.DEBUG_PACKET_ALLOC {
				atomic.AddInt64(&debugInfo.NewCount, 1)
				gwlog.Infof("DEBUG PACKETS: ALLOC=%d, RELEASE=%d, NEW=%d",
					atomic.LoadInt64(&debugInfo.AllocCount),
					atomic.LoadInt64(&debugInfo.ReleaseCount),
					atomic.LoadInt64(&debugInfo.NewCount))
			}
			return p
		},
	}
)

// Packet is a length prefixed byte packet for sending and receiving messages
//
// The 4 byte header holds the payload length and a compressed flag in the highest bit.
type Packet struct {
	readCursor int
	refcount   int64
	bytes      []byte // header + payload
}

func allocPacket() *Packet {
	pkt := packetPool.Get().(*Packet)
	pkt.refcount = 1
	if consts.DEBUG_PACKET_ALLOC {
		atomic.AddInt64(&debugInfo.AllocCount, 1)
	}
	if pkt.GetPayloadLen() != 0 || pkt.IsCompressed() {
		gwlog.Panicf("allocPacket: payload should be 0 not not compressed, but is %d, compressed %v", pkt.GetPayloadLen(), pkt.IsCompressed())
	}
	return pkt
}

// NewPacket allocates a new packet
func NewPacket() *Packet {
	return allocPacket()
}

// NewPacketFromData allocates a packet holding received data, which must start with a valid header
func NewPacketFromData(data []byte) (*Packet, error) {
	if len(data) < _PREPAYLOAD_SIZE {
		return nil, errors.Wrapf(ErrMalformedPacket, "%d bytes is shorter than the header", len(data))
	}
	header := packetEndian.Uint32(data)
	if int(header&_PAYLOAD_LEN_MASK) != len(data)-_PREPAYLOAD_SIZE {
		return nil, errors.Wrapf(ErrMalformedPacket, "header says %d payload bytes, got %d", header&_PAYLOAD_LEN_MASK, len(data)-_PREPAYLOAD_SIZE)
	}

	p := allocPacket()
	p.bytes = append(p.bytes[:0], data...)
	return p, nil
}

// Release releases the packet to packet pool
func (p *Packet) Release() {
	refcount := atomic.AddInt64(&p.refcount, -1)

	if refcount == 0 {
		p.readCursor = 0
		p.bytes = p.bytes[:_PREPAYLOAD_SIZE]
		p.setHeader(0, false)
		packetPool.Put(p)

		if consts.DEBUG_PACKET_ALLOC {
			atomic.AddInt64(&debugInfo.ReleaseCount, 1)
		}
	} else if refcount < 0 {
		gwlog.Panicf("releasing packet with refcount=%d", p.refcount)
	}
}

func (p *Packet) header() uint32 {
	return packetEndian.Uint32(p.bytes)
}

func (p *Packet) setHeader(plen uint32, compressed bool) {
	if compressed {
		plen |= _PAYLOAD_COMPRESSED_BIT_MASK
	}
	packetEndian.PutUint32(p.bytes, plen)
}

// GetPayloadLen returns the payload length
func (p *Packet) GetPayloadLen() uint32 {
	return p.header() & _PAYLOAD_LEN_MASK
}

// IsCompressed checks if the payload is compressed
func (p *Packet) IsCompressed() bool {
	return p.header()&_PAYLOAD_COMPRESSED_BIT_MASK != 0
}

// Payload returns the total payload of packet
func (p *Packet) Payload() []byte {
	return p.bytes[_PREPAYLOAD_SIZE:]
}

// HasUnreadPayload returns if any payload is not read yet
func (p *Packet) HasUnreadPayload() bool {
	return _PREPAYLOAD_SIZE+p.readCursor < len(p.bytes)
}

// Data returns header and payload, ready to be sent
func (p *Packet) Data() []byte {
	return p.bytes
}

func (p *Packet) grow(n int) []byte {
	plen := len(p.bytes) - _PREPAYLOAD_SIZE
	if plen+n > MAX_PAYLOAD_LENGTH {
		gwlog.Panicf("packet payload %d+%d exceeds %d", plen, n, MAX_PAYLOAD_LENGTH)
	}
	start := len(p.bytes)
	if cap(p.bytes) < start+n {
		newCap := cap(p.bytes) * 2
		if newCap < start+n {
			newCap = start + n
		}
		nb := make([]byte, start, newCap)
		copy(nb, p.bytes)
		p.bytes = nb
	}
	p.bytes = p.bytes[:start+n]
	p.setHeader(uint32(plen+n), p.IsCompressed())
	return p.bytes[start : start+n]
}

func (p *Packet) read(n int) []byte {
	pos := _PREPAYLOAD_SIZE + p.readCursor
	if n < 0 || pos+n > len(p.bytes) {
		panic(errors.Wrapf(ErrPacketTruncated, "packet payload is %d, but reading %d+%d", len(p.bytes)-_PREPAYLOAD_SIZE, p.readCursor, n))
	}
	p.readCursor += n
	return p.bytes[pos : pos+n]
}

// AppendUint16 appends one uint16 to the end of payload
func (p *Packet) AppendUint16(v uint16) {
	packetEndian.PutUint16(p.grow(2), v)
}

// AppendUint32 appends one uint32 to the end of payload
func (p *Packet) AppendUint32(v uint32) {
	packetEndian.PutUint32(p.grow(4), v)
}

// AppendUint64 appends one uint64 to the end of payload
func (p *Packet) AppendUint64(v uint64) {
	packetEndian.PutUint64(p.grow(8), v)
}

// PopUint32 pops one uint32 from the end of payload
func (p *Packet) PopUint32() uint32 {
	plen := len(p.bytes) - _PREPAYLOAD_SIZE
	if plen-p.readCursor < 4 {
		panic(errors.Wrapf(ErrPacketTruncated, "pop uint32 from %d unread bytes", plen-p.readCursor))
	}
	end := len(p.bytes)
	v := packetEndian.Uint32(p.bytes[end-4 : end])
	p.bytes = p.bytes[:end-4]
	p.setHeader(uint32(plen-4), p.IsCompressed())
	return v
}

// ReadUint16 reads one uint16 from the beginning of unread payload
func (p *Packet) ReadUint16() uint16 {
	return packetEndian.Uint16(p.read(2))
}

// ReadUint32 reads one uint32 from the beginning of unread payload
func (p *Packet) ReadUint32() uint32 {
	return packetEndian.Uint32(p.read(4))
}

// ReadUint64 reads one uint64 from the beginning of unread payload
func (p *Packet) ReadUint64() uint64 {
	return packetEndian.Uint64(p.read(8))
}

// AppendBytes appends slice of bytes to the end of payload
func (p *Packet) AppendBytes(v []byte) {
	copy(p.grow(len(v)), v)
}

// ReadBytes reads bytes from the beginning of unread payload. The bytes are not copied.
func (p *Packet) ReadBytes(size int) []byte {
	return p.read(size)
}

// AppendVarBytes appends varsize bytes to the end of payload
func (p *Packet) AppendVarBytes(v []byte) {
	p.AppendUint32(uint32(len(v)))
	p.AppendBytes(v)
}

// ReadVarBytes reads a varsize slice of bytes from the beginning of unread payload
func (p *Packet) ReadVarBytes() []byte {
	blen := p.ReadUint32()
	if blen > _PAYLOAD_LEN_MASK {
		panic(errors.Wrapf(ErrPacketTruncated, "var bytes length %d", blen))
	}
	return p.ReadBytes(int(blen))
}

// AppendVarStr appends a varsize string to the end of payload
func (p *Packet) AppendVarStr(s string) {
	p.AppendUint32(uint32(len(s)))
	copy(p.grow(len(s)), s)
}

// ReadVarStr reads a varsize string from the beginning of unread payload
func (p *Packet) ReadVarStr() string {
	return string(p.ReadVarBytes())
}

// AppendNetID appends one NetID to the end of payload
func (p *Packet) AppendNetID(id common.NetID) {
	p.AppendUint32(uint32(id))
}

// ReadNetID reads one NetID from the beginning of unread payload
func (p *Packet) ReadNetID() common.NetID {
	return common.NetID(p.ReadUint32())
}

// AppendPeerID appends one PeerID to the end of payload
func (p *Packet) AppendPeerID(id common.PeerID) {
	p.AppendUint32(uint32(id))
}

// ReadPeerID reads one PeerID from the beginning of unread payload
func (p *Packet) ReadPeerID() common.PeerID {
	return common.PeerID(p.ReadUint32())
}

// Compress compresses the payload if it is at least threshold bytes and compression saves space
//
// The uncompressed length is appended to the compressed payload.
func (p *Packet) Compress(compressor compress.Compressor, threshold int) {
	plen := len(p.bytes) - _PREPAYLOAD_SIZE
	if p.IsCompressed() || plen < threshold || plen == 0 {
		return
	}

	buf := make([]byte, _PREPAYLOAD_SIZE, _PREPAYLOAD_SIZE+plen)
	compressed, err := compressor.Compress(p.Payload(), buf)
	if err != nil {
		gwlog.Panic(errors.Wrap(err, "compress failed"))
	}
	compressedLen := len(compressed) - _PREPAYLOAD_SIZE
	if compressedLen >= plen-4 { // leave 4 bytes for the uncompressed length
		return // compress not useful enough, throw away
	}

	p.bytes = compressed
	p.setHeader(uint32(compressedLen), true)
	p.AppendUint32(uint32(plen))
}

// Decompress restores a payload compressed by Compress
func (p *Packet) Decompress(compressor compress.Compressor) error {
	if !p.IsCompressed() {
		return nil
	}
	if len(p.bytes)-_PREPAYLOAD_SIZE < 4 {
		return errors.Wrap(ErrMalformedPacket, "compressed payload too short")
	}

	plen := p.PopUint32()
	if plen > consts.MAX_DECOMPRESSED_PAYLOAD_LENGTH {
		return errors.Wrapf(ErrMalformedPacket, "decompressed payload of %d bytes is too long", plen)
	}
	buf := make([]byte, _PREPAYLOAD_SIZE+int(plen))
	if err := compressor.Decompress(p.Payload(), buf[_PREPAYLOAD_SIZE:]); err != nil {
		return errors.Wrapf(ErrMalformedPacket, "decompress failed: %v", err)
	}
	p.bytes = buf
	p.readCursor = 0
	p.setHeader(plen, false)
	return nil
}
