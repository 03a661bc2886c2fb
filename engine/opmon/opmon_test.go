package opmon

import (
	"testing"
	"time"

	"github.com/bmizerany/assert"
)

func TestOperation(t *testing.T) {
	op := StartOperation("test.op")
	time.Sleep(time.Millisecond)
	op.Finish(time.Hour)
	StartOperation("test.op").Finish(time.Hour)

	st := GetStats("test.op")
	assert.Equal(t, uint64(2), st.Count)
	assert.T(t, st.Max >= time.Millisecond)
	assert.T(t, st.Total >= st.Max)
}

func TestRecordBytes(t *testing.T) {
	RecordBytes("test.bytes", 10)
	RecordBytes("test.bytes", 30)

	st := GetStats("test.bytes")
	assert.Equal(t, uint64(2), st.Count)
	assert.Equal(t, uint64(40), st.TotalBytes)
	assert.Equal(t, 30, st.MaxBytes)

	Dump()
	assert.Equal(t, Stats{}, GetStats("test.bytes"))
}
