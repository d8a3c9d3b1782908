package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitCoalesces(t *testing.T) {
	var m Manager
	w := m.Watch()
	defer w.Stop()

	m.Emit("first")
	m.Emit("second") // must not block

	require.Len(t, w.Ch, 1)
	assert.Equal(t, "first", <-w.Ch)
}

func TestStopClosesChannelOnce(t *testing.T) {
	var m Manager
	w := m.Watch()

	w.Stop()
	w.Stop()

	_, ok := <-w.Ch
	assert.False(t, ok)

	m.Emit("ignored") // no watchers left
}
