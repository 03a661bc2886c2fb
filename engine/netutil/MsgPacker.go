package netutil

var (
	// MSG_PACKER packs the entity snapshots written by freeze and read by restore
	MSG_PACKER MsgPacker = MessagePackMsgPacker{}
)

// MsgPacker packs and unpacks snapshot data
type MsgPacker interface {
	// PackMsg appends the packed msg to buf
	PackMsg(msg interface{}, buf []byte) ([]byte, error)
	UnpackMsg(data []byte, msg interface{}) error
}
