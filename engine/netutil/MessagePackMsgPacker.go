package netutil

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack"
)

// MessagePackMsgPacker packs snapshots in MessagePack format, using the msgpack struct tags of the snapshot types
type MessagePackMsgPacker struct{}

// PackMsg appends msg to buf in MessagePack format
func (mp MessagePackMsgPacker) PackMsg(msg interface{}, buf []byte) ([]byte, error) {
	buffer := bytes.NewBuffer(buf)
	if err := msgpack.NewEncoder(buffer).Encode(msg); err != nil {
		return buf, errors.Wrapf(err, "pack %T", msg)
	}
	return buffer.Bytes(), nil
}

// UnpackMsg unpacks data in MessagePack format into msg
func (mp MessagePackMsgPacker) UnpackMsg(data []byte, msg interface{}) error {
	return errors.Wrapf(msgpack.Unmarshal(data, msg), "unpack %T", msg)
}
