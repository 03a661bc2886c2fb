package consts

import "time"

// Tunable Options
const (
	// For Wire Format
	// MAX_PACKET_SIZE is the maximum number of bytes in one envelope packet, kept under a typical UDP MTU
	MAX_PACKET_SIZE = 1200
	// MAX_TRACKED_FIELDS is the maximum number of tracked fields across a whole schema chain (one dirty mask)
	MAX_TRACKED_FIELDS = 64
	// MAX_STRING_LENGTH is the maximum length of string field values on the wire
	MAX_STRING_LENGTH = 1024
	// DEFAULT_QUATERNION_BITS is the default number of bits per smallest-three quaternion element
	DEFAULT_QUATERNION_BITS = 9
	// DEFAULT_VARINT_BLOCK_SIZE is the default payload bits per block of block-varint packed values
	DEFAULT_VARINT_BLOCK_SIZE = 7

	// For Packets Send & Recv
	// PACKET_PAYLOAD_LEN_COMPRESS_THRESHOLD is the minimal packet payload length that should be compressed
	PACKET_PAYLOAD_LEN_COMPRESS_THRESHOLD = 512
	// MAX_DECOMPRESSED_PAYLOAD_LENGTH is the largest payload a received compressed packet may expand to
	MAX_DECOMPRESSED_PAYLOAD_LENGTH = 16 * 1024 * 1024

	// For Host
	// HOST_TICK_INTERVAL is the tick interval of host main loop => affect timer resolution
	HOST_TICK_INTERVAL = time.Millisecond * 10
	// HOST_POST_QUEUE_WARN_LEN is the number of posted callbacks per tick that triggers a warning
	HOST_POST_QUEUE_WARN_LEN = 10000
	// SYNC_FLUSH_WARN_THRESHOLD is the flush duration that triggers a slow-operation warning
	SYNC_FLUSH_WARN_THRESHOLD = time.Millisecond * 20

	// For Transports
	// TRANSPORT_READ_BUFFER_SIZE is the read buffer size of transport connections
	TRANSPORT_READ_BUFFER_SIZE = 1024 * 1024
	// TRANSPORT_WRITE_BUFFER_SIZE is the write buffer size of transport connections
	TRANSPORT_WRITE_BUFFER_SIZE = 1024 * 1024
	// WEBSOCKET_PATH is the http path the websocket transport is served on
	WEBSOCKET_PATH = "/ws"

	// For Operation Monitor
	// OPMON_DUMP_INTERVAL is the interval to print opmon infos to output, 0 turns dumping off
	OPMON_DUMP_INTERVAL = 0
)

// Debug Options
const (
	// DEBUG_PACKETS prints packet send/recv debug logs
	DEBUG_PACKETS = false
	// DEBUG_SYNC prints dirty mask and flush debug logs
	DEBUG_SYNC = false
	// DEBUG_SPAWN prints spawn & destroy debug logs
	DEBUG_SPAWN = false
	// DEBUG_PACKET_ALLOC prints packet allocation debug logs
	DEBUG_PACKET_ALLOC = false
)
