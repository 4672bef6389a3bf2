package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryAdmitEvict(t *testing.T) {
	r := newRegistry()
	a, b := &Client{id: "a"}, &Client{id: "b"}

	assert.True(t, r.admit(a))
	assert.True(t, r.admit(b))
	assert.False(t, r.admit(a))
	assert.Equal(t, 2, r.len())
	assert.Equal(t, []*Client{a, b}, r.snapshot())

	assert.True(t, r.evict(a))
	assert.False(t, r.evict(a))
	assert.False(t, r.contains(a))
	assert.True(t, r.contains(b))
	assert.Equal(t, 1, r.len())
}

func TestRegistrySnapshotKeepsAdmissionOrder(t *testing.T) {
	r := newRegistry()
	clients := make([]*Client, 20)
	for i := range clients {
		clients[i] = &Client{}
		r.admit(clients[i])
	}
	r.evict(clients[3])

	want := append(append([]*Client{}, clients[:3]...), clients[4:]...)
	assert.Equal(t, want, r.snapshot())
}

func TestRegistryBindings(t *testing.T) {
	r := newRegistry()
	a, b := &Client{id: "a"}, &Client{id: "b"}
	r.admit(a)
	r.admit(b)

	assert.Nil(t, r.register(a, "Isidore"))
	a.author = "Isidore"
	assert.Same(t, a, r.lookup("Isidore"))

	assert.Same(t, a, r.register(b, "Isidore"))
	b.author = "Isidore"
	assert.Same(t, b, r.lookup("Isidore"))

	name, ok := r.unregister(a)
	assert.False(t, ok)
	assert.Empty(t, name)
	assert.Same(t, b, r.lookup("Isidore"))

	name, ok = r.unregister(b)
	assert.True(t, ok)
	assert.Equal(t, "Isidore", name)
	assert.Nil(t, r.lookup("Isidore"))

	_, ok = r.unregister(&Client{})
	assert.False(t, ok)
}

func TestRegistryNamesSortedCaseInsensitively(t *testing.T) {
	r := newRegistry()
	for _, name := range []string{"zoe", "Bob", "alice", "Alice"} {
		r.register(&Client{}, name)
	}

	assert.Equal(t, []string{"Alice", "alice", "Bob", "zoe"}, r.names())
}
