package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_RegisterAndCount(t *testing.T) {
	r := NewRegistry()
	assert.Zero(t, r.Count("user-1"))

	a, b := &Client{}, &Client{}
	r.Register("user-1", a)
	r.Register("user-1", b)
	r.Register("user-2", &Client{})

	assert.Equal(t, 2, r.Count("user-1"))
	assert.Equal(t, 1, r.Count("user-2"))
}

func TestRegistry_Deregister(t *testing.T) {
	r := NewRegistry()
	a, b := &Client{}, &Client{}
	r.Register("user-1", a)
	r.Register("user-1", b)

	r.Deregister("user-1", a)
	assert.Equal(t, 1, r.Count("user-1"))

	r.Deregister("user-1", b)
	assert.Zero(t, r.Count("user-1"))
	assert.Nil(t, r.Connections("user-1"))
}

func TestRegistry_DeregisterUnknownIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Deregister("user-1", &Client{})
	assert.Zero(t, r.Count("user-1"))
}

func TestRegistry_ConnectionsSnapshot(t *testing.T) {
	r := NewRegistry()
	a, b := &Client{}, &Client{}
	r.Register("user-1", a)
	r.Register("user-1", b)

	conns := r.Connections("user-1")
	assert.Len(t, conns, 2)
	assert.ElementsMatch(t, []*Client{a, b}, conns)

	// The snapshot is detached from the registry.
	r.Deregister("user-1", a)
	assert.Len(t, conns, 2)
}
