package server

import (
	"sort"
	"strings"
)

// registry tracks the open connections of one channel and the author names
// bound to them. It is not safe for concurrent use; the owning Channel
// serializes every call.
type registry struct {
	conns   map[*Client]struct{}
	users   map[string]*Client
	nextSeq uint64
}

func newRegistry() *registry {
	return &registry{
		conns: make(map[*Client]struct{}),
		users: make(map[string]*Client),
	}
}

// admit adds c to the live set. It returns false if c was already present.
func (r *registry) admit(c *Client) bool {
	if _, ok := r.conns[c]; ok {
		return false
	}
	r.nextSeq++
	c.seq = r.nextSeq
	r.conns[c] = struct{}{}
	return true
}

// evict removes c from the live set. Evicting an absent client is a no-op
// reported by a false return.
func (r *registry) evict(c *Client) bool {
	if _, ok := r.conns[c]; !ok {
		return false
	}
	delete(r.conns, c)
	return true
}

func (r *registry) contains(c *Client) bool {
	_, ok := r.conns[c]
	return ok
}

func (r *registry) len() int {
	return len(r.conns)
}

// snapshot returns the live set ordered by admission.
func (r *registry) snapshot() []*Client {
	clients := make([]*Client, 0, len(r.conns))
	for c := range r.conns {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].seq < clients[j].seq })
	return clients
}

// register binds name to c and returns the connection that held it before,
// if any. The last registration wins.
func (r *registry) register(c *Client, name string) *Client {
	previous := r.users[name]
	r.users[name] = c
	return previous
}

func (r *registry) lookup(name string) *Client {
	return r.users[name]
}

// unregister drops the binding held by c. A name that has since been
// rebound to another connection is left untouched.
func (r *registry) unregister(c *Client) (string, bool) {
	if c.author == "" || r.users[c.author] != c {
		return "", false
	}
	delete(r.users, c.author)
	return c.author, true
}

// names returns the bound author names, sorted case-insensitively.
func (r *registry) names() []string {
	names := make([]string, 0, len(r.users))
	for name := range r.users {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := strings.ToLower(names[i]), strings.ToLower(names[j])
		if a == b {
			return names[i] < names[j]
		}
		return a < b
	})
	return names
}
