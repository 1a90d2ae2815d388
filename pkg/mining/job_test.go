package mining

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobValid(t *testing.T) {
	assert.False(t, (*Job)(nil).Valid())
	assert.False(t, (&Job{Version: 0, Bits: 1}).Valid())
	assert.False(t, (&Job{Version: 1, Bits: 0}).Valid())
	assert.True(t, (&Job{Version: 1, Bits: 1}).Valid())
}

func TestJobBaseVersionClearsMiningMask(t *testing.T) {
	job := &Job{Version: 0x20000000 | MiningMask}
	assert.Equal(t, uint32(0x20000000), job.BaseVersion())
}

func TestSameComparesByIdentity(t *testing.T) {
	a := &Job{Version: 1}
	b := &Job{Version: 1}
	assert.True(t, Same(a, a))
	assert.False(t, Same(a, b), "equal field values are still distinct jobs by identity")
	assert.True(t, Same(nil, nil))
}
