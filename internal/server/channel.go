// Package server implements the per-channel broadcast engine. Each Channel
// owns its registry and serializes membership changes, history writes and
// the enqueueing of the resulting frames behind a single mutex, so every
// member observes the same order of events.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/Tyrowin/gischat/internal/logger"
	"github.com/Tyrowin/gischat/internal/protocol"
)

const historyTimeout = 2 * time.Second

// Channel is a fixed, named broadcast domain.
type Channel struct {
	name string
	hub  *Hub
	log  *slog.Logger

	mu  sync.Mutex
	reg *registry
}

func newChannel(name string, hub *Hub) *Channel {
	return &Channel{
		name: name,
		hub:  hub,
		log:  hub.log.With(logger.Channel(name)),
		reg:  newRegistry(),
	}
}

// Name returns the channel name.
func (ch *Channel) Name() string {
	return ch.name
}

// Join admits c, announces the new connection count to the channel, then
// replays the stored history to c alone.
func (ch *Channel) Join(c *Client) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if c.state != StateConnecting || !ch.reg.admit(c) {
		return
	}
	c.state = StateOpen
	ch.log.Info("Client joined", logger.Client(c.addr), logger.ConnID(c.id), logger.Count("nb_users", ch.reg.len()))

	ch.broadcastLocked(protocol.NbUsers{NbUsers: ch.reg.len()})

	ctx, cancel := context.WithTimeout(ch.hub.ctx, historyTimeout)
	defer cancel()
	stored, err := ch.hub.store.List(ctx, ch.name)
	if err != nil {
		ch.log.Error("Failed to load channel history", logger.Error(err))
		return
	}
	for _, m := range stored {
		if !ch.sendLocked(c, m) {
			return
		}
	}
}

// Leave evicts c and broadcasts its departure. Only the first call for a
// given client has any effect.
func (ch *Channel) Leave(c *Client) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	ch.broadcastLocked(ch.removeLocked(c, "disconnected")...)
}

// Dispatch applies a validated inbound message from c. Messages from a
// client that is no longer a member are dropped.
func (ch *Channel) Dispatch(c *Client, m protocol.Message) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if !ch.reg.contains(c) {
		return
	}

	switch m := m.(type) {
	case protocol.Newcomer:
		ch.registerLocked(c, m.Newcomer)
	case protocol.Like:
		target := ch.reg.lookup(m.LikedAuthor)
		if target == nil {
			ch.log.Debug("Dropping like for absent author", logger.Author(m.LikedAuthor))
			return
		}
		ch.log.Info("Like delivered", slog.String("liker", m.LikerAuthor), slog.String("liked", m.LikedAuthor))
		ch.sendLocked(target, m)
	case protocol.Text:
		ch.log.Info("Text message", logger.Author(m.Author), slog.Int("length", utf8.RuneCountInString(m.Text)))
		ch.recordLocked(m)
		ch.broadcastLocked(m)
	case protocol.Image, protocol.GeoJSON, protocol.CRS, protocol.BBox, protocol.Position, protocol.Model:
		ch.log.Info("Shared content", logger.Kind(string(m.Kind())), logger.Author(m.(protocol.Authored).AuthorName()))
		ch.broadcastLocked(m)
	case protocol.NbUsers, protocol.Exiter, protocol.Uncompliant:
		ch.sendLocked(c, protocol.Uncompliant{Reason: fmt.Sprintf("message type '%s' is reserved to the server", m.Kind())})
	default:
		ch.log.Error("Unhandled message kind", logger.Kind(string(m.Kind())))
	}
}

// Reply sends an uncompliant notice to c only.
func (ch *Channel) Reply(c *Client, reason string) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if !ch.reg.contains(c) {
		return
	}
	ch.sendLocked(c, protocol.Uncompliant{Reason: reason})
}

// Publish records a server-side message and broadcasts it to every member.
func (ch *Channel) Publish(m protocol.Message) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	ch.recordLocked(m)
	ch.broadcastLocked(m)
}

// ConnectedCount returns the number of open connections.
func (ch *Channel) ConnectedCount() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	return ch.reg.len()
}

// RegisteredUsers returns the bound author names, sorted case-insensitively.
func (ch *Channel) RegisteredUsers() []string {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	return ch.reg.names()
}

// Lookup returns the connection currently bound to name, or nil.
func (ch *Channel) Lookup(name string) *Client {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	return ch.reg.lookup(name)
}

// Snapshot returns the open connections in admission order.
func (ch *Channel) Snapshot() []*Client {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	return ch.reg.snapshot()
}

// History returns the stored messages in insertion order.
func (ch *Channel) History(ctx context.Context) ([]protocol.Message, error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	return ch.hub.store.List(ctx, ch.name)
}

func (ch *Channel) registerLocked(c *Client, name string) {
	if c.author != "" {
		ch.log.Info("Refusing second registration", logger.Author(c.author), slog.String("requested", name))
		ch.sendLocked(c, protocol.Uncompliant{
			Reason: fmt.Sprintf("Already registered as '%s' in channel %s", c.author, ch.name),
		})
		return
	}

	if previous := ch.reg.register(c, name); previous != nil && previous != c {
		ch.log.Info("Author name rebound to a new connection",
			logger.Author(name), slog.String("previous_conn_id", previous.id), logger.ConnID(c.id))
	}
	c.author = name
	c.state = StateRegistered
	ch.log.Info("Welcome newcomer", logger.Author(name), logger.ConnID(c.id))

	ch.broadcastLocked(protocol.Newcomer{Newcomer: name}, protocol.NbUsers{NbUsers: ch.reg.len()})
}

func (ch *Channel) recordLocked(m protocol.Message) {
	if !protocol.Storable(m) {
		return
	}
	ctx, cancel := context.WithTimeout(ch.hub.ctx, historyTimeout)
	defer cancel()
	if err := ch.hub.store.Append(ctx, ch.name, m); err != nil {
		ch.log.Error("Failed to store message", logger.Kind(string(m.Kind())), logger.Error(err))
	}
}

// removeLocked evicts c and returns the presence events announcing its
// departure, or nil if c was not a member.
func (ch *Channel) removeLocked(c *Client, cause string) []protocol.Message {
	if !ch.reg.evict(c) {
		return nil
	}
	c.state = StateClosed
	close(c.send)

	departures := make([]protocol.Message, 0, 2)
	if name, ok := ch.reg.unregister(c); ok {
		departures = append(departures, protocol.Exiter{Exiter: name})
	}
	departures = append(departures, protocol.NbUsers{NbUsers: ch.reg.len()})

	ch.log.Info("Client left", logger.Client(c.addr), logger.ConnID(c.id), logger.Author(c.author),
		slog.String("cause", cause), logger.Count("nb_users", ch.reg.len()))
	return departures
}

// broadcastLocked fans messages out to every member in order. A member
// whose send queue is full is evicted on the spot and its departure is
// queued behind the remaining messages.
func (ch *Channel) broadcastLocked(messages ...protocol.Message) {
	pending := messages
	for len(pending) > 0 {
		m := pending[0]
		pending = pending[1:]

		payload, err := protocol.Encode(m)
		if err != nil {
			ch.log.Error("Failed to encode broadcast", logger.Kind(string(m.Kind())), logger.Error(err))
			continue
		}
		for _, c := range ch.reg.snapshot() {
			if !c.enqueue(payload) {
				pending = append(pending, ch.removeLocked(c, "send queue full")...)
			}
		}
	}
}

// sendLocked delivers m to c only. It returns false if c was evicted
// because its send queue is full.
func (ch *Channel) sendLocked(c *Client, m protocol.Message) bool {
	payload, err := protocol.Encode(m)
	if err != nil {
		ch.log.Error("Failed to encode message", logger.Kind(string(m.Kind())), logger.Error(err))
		return true
	}
	if c.enqueue(payload) {
		return true
	}
	ch.broadcastLocked(ch.removeLocked(c, "send queue full")...)
	return false
}
