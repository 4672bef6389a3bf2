// Package server coordinates the configured channels, inbound frame
// handling, and connection cleanup for the gischat relay via the Hub type.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Tyrowin/gischat/internal/history"
	"github.com/Tyrowin/gischat/internal/logger"
	"github.com/Tyrowin/gischat/internal/media"
	"github.com/Tyrowin/gischat/internal/protocol"
)

// ErrUnknownChannel is returned for a channel name outside the configured set.
var ErrUnknownChannel = errors.New("unknown channel")

// Hub owns the fixed set of channels and the services shared by all of
// them. Channels are created once by NewHub and never added or removed, so
// the channel map is read without locking.
type Hub struct {
	cfg       Config
	names     []string
	channels  map[string]*Channel
	store     history.Store
	validator *protocol.Validator
	media     *media.Processor
	log       *slog.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a Hub serving cfg.Channels with store as history backend.
func NewHub(cfg Config, store history.Store, log *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		cfg:       cfg,
		names:     append([]string(nil), cfg.Channels...),
		channels:  make(map[string]*Channel, len(cfg.Channels)),
		store:     store,
		validator: protocol.NewValidator(cfg.Limits()),
		media:     media.NewProcessor(cfg.MaxImageSize, cfg.MaxImagePixels),
		log:       log.With(logger.Component("hub")),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, name := range h.names {
		h.channels[name] = newChannel(name, h)
	}
	return h
}

// Channel returns the named channel.
func (h *Hub) Channel(name string) (*Channel, bool) {
	ch, ok := h.channels[name]
	return ch, ok
}

// ChannelNames returns the configured channel names in configuration order.
func (h *Hub) ChannelNames() []string {
	return append([]string(nil), h.names...)
}

// Config returns the configuration the hub was built with.
func (h *Hub) Config() Config {
	return h.cfg
}

// Status returns the number of open connections of every channel.
func (h *Hub) Status() []ChannelStatus {
	status := make([]ChannelStatus, 0, len(h.names))
	for _, name := range h.names {
		status = append(status, ChannelStatus{Name: name, NbConnectedUsers: h.channels[name].ConnectedCount()})
	}
	return status
}

// Serve admits c into its channel and starts its pumps.
func (h *Hub) Serve(c *Client) {
	c.channel.Join(c)

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		c.writePump()
	}()
	go func() {
		defer h.wg.Done()
		c.readPump()
	}()
}

// HandleFrame parses, validates and dispatches one inbound frame from c.
//
// Refused messages are answered with an uncompliant reply to c and yield a
// nil error. Frames that are not messages of a known type are dropped and
// returned as a *protocol.ParseError so the caller can apply the
// malformed-frame policy.
func (h *Hub) HandleFrame(c *Client, raw []byte) error {
	msg, err := protocol.Decode(raw)
	if err == nil {
		msg, err = h.prepare(msg)
	}

	var refused *protocol.ValidationError
	switch {
	case err == nil:
		c.channel.Dispatch(c, msg)
		return nil
	case errors.As(err, &refused):
		c.log.Info("Uncompliant message", logger.Kind(string(refused.Kind)), logger.Reason(refused.Reason))
		c.channel.Reply(c, refused.Reason)
		return nil
	default:
		c.log.Warn("Dropping malformed frame", logger.Error(err))
		return err
	}
}

// PublishText validates a text message received outside of a websocket and
// broadcasts it to the named channel.
func (h *Hub) PublishText(channel string, m protocol.Text) error {
	ch, ok := h.Channel(channel)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}
	if err := h.validator.Validate(m); err != nil {
		return err
	}
	ch.Publish(m)
	return nil
}

// prepare validates msg and bounds the bitmap of image messages.
func (h *Hub) prepare(msg protocol.Message) (protocol.Message, error) {
	if err := h.validator.Validate(msg); err != nil {
		return nil, err
	}

	img, ok := msg.(protocol.Image)
	if !ok {
		return msg, nil
	}
	res, err := h.media.Process(img.ImageData)
	if err != nil {
		return nil, &protocol.ValidationError{
			Kind:   protocol.KindImage,
			Reason: fmt.Sprintf("Image could not be processed : %v", err),
		}
	}
	if res.Resized {
		h.log.Debug("Image resized", logger.Author(img.Author),
			slog.Int("width", res.Width), slog.Int("height", res.Height))
	}
	img.ImageData = res.Data
	return img, nil
}

// shutdownClients closes every live transport. Each read pump then runs the
// normal departure sequence.
func (h *Hub) shutdownClients() {
	h.log.Info("Shutting down all client connections...")

	closed := 0
	for _, name := range h.names {
		for _, client := range h.channels[name].Snapshot() {
			if client.conn == nil {
				continue
			}
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				client.log.Error("Error closing client connection", logger.Error(err))
			}
			closed++
		}
	}

	h.log.Info("Closed client connections", logger.Count("count", closed))
}

// Shutdown closes all client connections and waits for their goroutines to
// complete, or for the timeout to expire.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("Initiating hub shutdown...")
	start := time.Now()

	h.cancel()
	h.shutdownClients()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("Hub shutdown completed successfully", logger.Duration(time.Since(start)))
		return nil
	case <-time.After(timeout):
		h.log.Warn("Hub shutdown timeout reached, some goroutines may still be running",
			logger.Duration(time.Since(start)))
		return context.DeadlineExceeded
	}
}
