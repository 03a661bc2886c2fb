package common

import (
	"testing"

	"github.com/bmizerany/assert"
)

func TestStringSet(t *testing.T) {
	ss := StringSet{}
	ss.Add("2")
	ss.Add("1")
	assert.T(t, ss.Contains("1"), "should contain")
	assert.T(t, ss.Contains("2"), "should contain")
	assert.Equal(t, []string{"1", "2"}, ss.ToList())
	ss.Remove("2")
	assert.T(t, !ss.Contains("2"), "should not contain")
}

func TestPeerIDSet(t *testing.T) {
	ps := PeerIDSet{}
	ps.Add(3)
	ps.Add(1)
	ps.Add(2)
	assert.T(t, ps.Contains(1), "should contain")
	assert.Equal(t, []PeerID{1, 2, 3}, ps.ToList())
	ps.Del(2)
	assert.T(t, !ps.Contains(2), "should not contain")
	assert.Equal(t, 2, len(ps))
}
