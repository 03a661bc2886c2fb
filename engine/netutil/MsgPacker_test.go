package netutil

import (
	"strconv"
	"strings"
	"testing"

	"github.com/bmizerany/assert"
)

type testMsg struct {
	ID        string
	F1        float64
	F2        int
	ListField []interface{}
	MapField  map[string]interface{}
}

func BenchmarkMessagePackMsgPacker(b *testing.B) {
	benchmarkMsgPacker(b, &MessagePackMsgPacker{})
}

func benchmarkMsgPacker(b *testing.B, packer MsgPacker) {
	b.Logf("Testing MsgPacker %T ...", packer)
	msg := testMsg{
		ID:        "abc",
		F1:        0.123124234,
		ListField: []interface{}{1, 2, 3, "abc", "def"},
		MapField:  map[string]interface{}{},
	}
	for i := 0; i < 100; i++ {
		msg.MapField["field"+strconv.Itoa(i)] = strconv.Itoa(i * i)
	}

	var totalSize int64
	for i := 0; i < b.N; i++ {

		buf := make([]byte, 0, 100)
		buf, _ = packer.PackMsg(msg, buf)
		totalSize += int64(len(buf))

		var restoreMsg map[string]interface{}
		_ = packer.UnpackMsg(buf, &restoreMsg)
		//if msg.ID != restoreMsg.ID {
		//	b.Fail()
		//}
	}
	b.Logf("average size: %d", totalSize/int64(b.N))
}

func TestMessagePackMsgPacker_UnpackMsg(t *testing.T) {
	msg := map[string]interface{}{
		"a": 1,
		"b": 2,
		"c": map[string]interface{}{
			"d": 1,
		},
	}
	buf := make([]byte, 0)
	buf, err := MessagePackMsgPacker{}.PackMsg(msg, buf)
	if err != nil {
		t.Error(err)
	}
	var outmsg map[string]interface{}
	assert.Equal(t, nil, MessagePackMsgPacker{}.UnpackMsg(buf, &outmsg))
	t.Logf("outmsg %T %v", outmsg, outmsg)
	assert.Equal(t, 3, len(outmsg))
}

type spawnRecord struct {
	NetID    uint32
	TypeName string
	Values   []interface{}
}

func TestMessagePackMsgPacker_Struct(t *testing.T) {
	in := spawnRecord{NetID: 7, TypeName: "Player", Values: []interface{}{"bob", true}}
	buf, err := MSG_PACKER.PackMsg(in, nil)
	assert.Equal(t, nil, err)

	var out spawnRecord
	assert.Equal(t, nil, MSG_PACKER.UnpackMsg(buf, &out))
	assert.Equal(t, in.NetID, out.NetID)
	assert.Equal(t, in.TypeName, out.TypeName)
	assert.Equal(t, 2, len(out.Values))
	assert.Equal(t, "bob", out.Values[0])
	assert.Equal(t, true, out.Values[1])
}

func TestMessagePackMsgPacker_UnpackCorrupt(t *testing.T) {
	var out spawnRecord
	err := MSG_PACKER.UnpackMsg([]byte{0xc1}, &out)
	assert.T(t, err != nil)
	assert.T(t, strings.Contains(err.Error(), "unpack *netutil.spawnRecord"))
}

func BenchmarkMessagePackMsgPacker_PackMsg_Array_AllInOne(b *testing.B) {
	packer := MessagePackMsgPacker{}
	items := []testMsg{}
	for i := 0; i < 3; i++ {
		items = append(items, testMsg{
			ID:        "abc",
			F1:        0.123124234,
			ListField: []interface{}{1, 2, 3, "abc", "def"},
			MapField:  map[string]interface{}{},
		})
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		packer.PackMsg(items, []byte{})
	}
}

func BenchmarkMessagePackMsgPacker_PackMsg_Array_OneByOne(b *testing.B) {
	packer := MessagePackMsgPacker{}
	items := []testMsg{}
	for i := 0; i < 3; i++ {
		items = append(items, testMsg{
			ID:        "abc",
			F1:        0.123124234,
			ListField: []interface{}{1, 2, 3, "abc", "def"},
			MapField:  map[string]interface{}{},
		})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, item := range items {
			packer.PackMsg(item, []byte{})
		}
	}
}
