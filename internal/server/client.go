// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/Tyrowin/gischat/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client represents one WebSocket connection bound to a single channel for
// its whole lifetime.
type Client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	hub     *Hub
	channel *Channel
	addr    string
	log     *slog.Logger

	maxFrameSize     int64
	closeOnMalformed bool
	rateLimiter      *rate.Limiter
	rateLimit        RateLimitConfig

	// Guarded by channel.mu.
	state  State
	author string
	seq    uint64
}

// NewClient creates a Client bound to ch. The send channel is buffered with
// the configured queue size; a client whose queue is full when a frame is
// fanned out gets evicted.
func NewClient(conn *websocket.Conn, ch *Channel, addr string) *Client {
	cfg := ch.hub.cfg
	if conn != nil {
		conn.SetReadLimit(cfg.MaxFrameSize)
	}
	id := uuid.NewString()

	return &Client{
		id:               id,
		conn:             conn,
		send:             make(chan []byte, max(cfg.SendQueueSize, 1)),
		hub:              ch.hub,
		channel:          ch,
		addr:             addr,
		log:              ch.log.With(logger.Client(addr), logger.ConnID(id)),
		maxFrameSize:     cfg.MaxFrameSize,
		closeOnMalformed: cfg.CloseOnMalformedFrame,
		rateLimiter:      newFrameLimiter(cfg.RateLimit),
		rateLimit:        cfg.RateLimit,
		state:            StateConnecting,
	}
}

// ID returns the connection identifier.
func (c *Client) ID() string {
	return c.id
}

// Channel returns the channel the client is bound to.
func (c *Client) Channel() *Channel {
	return c.channel
}

// GetSendChan returns the client's send channel for reading outgoing messages.
// This channel is read-only from the caller's perspective.
func (c *Client) GetSendChan() <-chan []byte {
	return c.send
}

// State returns the lifecycle state of the connection.
func (c *Client) State() State {
	c.channel.mu.Lock()
	defer c.channel.mu.Unlock()
	return c.state
}

// Author returns the author name bound by registration, or "".
func (c *Client) Author() string {
	c.channel.mu.Lock()
	defer c.channel.mu.Unlock()
	return c.author
}

// enqueue hands payload to the write pump without blocking.
func (c *Client) enqueue(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Error("Error setting initial read deadline", logger.Error(err))
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.Error("Error setting read deadline in pong handler", logger.Error(err))
		}
		return nil
	})
}

// logReadError logs the reason a read loop ended, by error class.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("Frame exceeded maximum size", slog.Int64("max_frame_size", c.maxFrameSize))
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Debug("Client disconnected", logger.Error(err))
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.log.Debug("Client connection closed", logger.Error(err))
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		c.log.Warn("Unexpected WebSocket close", logger.Error(err))
	default:
		c.log.Warn("WebSocket read error", logger.Error(err))
	}
}

// checkRateLimit verifies if the client has exceeded rate limits
// and returns true if the message should be processed
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.Allow() {
		c.log.Warn("Rate limit exceeded; discarding frame",
			slog.Int("burst", c.rateLimit.Burst), slog.Duration("interval", c.rateLimit.RefillInterval))
		return false
	}
	return true
}

func (c *Client) readPump() {
	defer func() {
		c.channel.Leave(c)
		c.closeConnection()
	}()

	c.setupReadConnection()

	for {
		_, rawMessage, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		if !c.checkRateLimit() {
			continue
		}

		if err := c.hub.HandleFrame(c, rawMessage); err != nil && c.closeOnMalformed {
			c.log.Info("Closing connection after malformed frame")
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleMessage(message, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Error("Error closing connection", logger.Error(err))
		}
	}
}

// handleMessage writes one outgoing frame and returns false if the connection should be closed
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Error("Error setting write deadline", logger.Error(err))
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("Error writing message", logger.Error(err))
		}
		return false
	}
	return true
}

// writeCloseMessage sends a close message to the client
func (c *Client) writeCloseMessage() bool {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Debug("Error writing close message", logger.Error(err))
		}
	}
	return false
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Error("Error setting write deadline for ping", logger.Error(err))
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.log.Debug("Error writing ping message", logger.Error(err))
		return false
	}
	return true
}
