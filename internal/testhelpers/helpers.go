// Package testhelpers provides common utilities and helper functions for testing the gischat server.
//
// It wraps the websocket dialer and the JSON frame decoding used by the
// server tests so each test reads as a sequence of protocol exchanges.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultTimeout bounds every blocking read performed by the helpers.
const DefaultTimeout = 2 * time.Second

// WebSocketURL returns the ws:// URL of a channel on srv.
func WebSocketURL(srv *httptest.Server, channel string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/channel/" + channel + "/ws"
}

// ConnectWebSocket creates a WebSocket connection to the specified URL.
// It returns the connection, the handshake response status, or an error if
// the connection fails.
func ConnectWebSocket(url, origin string) (*websocket.Conn, int, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	status := 0
	if resp != nil {
		status = resp.StatusCode
		_ = resp.Body.Close()
	}
	return conn, status, err
}

// MustConnect dials a channel of srv and registers cleanup of the connection.
func MustConnect(t *testing.T, srv *httptest.Server, channel string) *websocket.Conn {
	t.Helper()
	conn, _, err := ConnectWebSocket(WebSocketURL(srv, channel), "")
	if err != nil {
		t.Fatalf("Failed to connect to channel %s: %v", channel, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// SendJSON writes v as one text frame.
func SendJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("Failed to send message: %v", err)
	}
}

// SendRaw writes data as one text frame.
func SendRaw(t *testing.T, conn *websocket.Conn, data string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(data)); err != nil {
		t.Fatalf("Failed to send raw frame: %v", err)
	}
}

// ReadMessage reads the next frame and decodes it as a JSON object.
func ReadMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(DefaultTimeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Received frame is not a JSON object: %v (%s)", err, data)
	}
	return msg
}

// ReadUntil reads frames until one has the given type and returns it.
// Frames of other types are skipped.
func ReadUntil(t *testing.T, conn *websocket.Conn, kind string) map[string]any {
	t.Helper()
	for {
		msg := ReadMessage(t, conn)
		if msg["type"] == kind {
			return msg
		}
	}
}

// ExpectNoMessage asserts that no frame arrives within timeout.
func ExpectNoMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, data, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("Expected no message, but received %s", data)
	}
}

// ExpectClosed asserts that the server closes the connection within timeout.
func ExpectClosed(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return
		}
		if _, _, err := conn.ReadMessage(); err != nil {
			if time.Now().After(deadline) {
				t.Fatalf("Connection still open after %s", timeout)
			}
			return
		}
	}
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
