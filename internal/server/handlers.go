// Package server exposes HTTP handlers, including the per-channel WebSocket
// upgrade, the read-only metadata endpoints, health probes, and the
// built-in test page.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/gischat/internal/logger"
	"github.com/Tyrowin/gischat/internal/protocol"
)

// Version is the build version reported by /version. It is set at link
// time with -ldflags "-X github.com/Tyrowin/gischat/internal/server.Version=...".
var Version = "dev"

// maxTextBodySize bounds the body of PUT /channel/{channel}/text.
const maxTextBodySize = 64 << 10

// ReadinessCheck reports whether a dependency can serve requests.
type ReadinessCheck func(context.Context) error

// API serves the HTTP surface of a Hub.
type API struct {
	hub      *Hub
	upgrader websocket.Upgrader
	checks   []ReadinessCheck
	log      *slog.Logger
}

// NewAPI returns the HTTP handlers backed by hub. checks run on every
// readiness probe.
func NewAPI(hub *Hub, checks ...ReadinessCheck) *API {
	log := hub.log.With(logger.Component("http"))
	origins := newOriginPolicy(hub.cfg.AllowedOrigins, log)
	return &API{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
		checks: checks,
		log:    log,
	}
}

type rulesResponse struct {
	Rules              string `json:"rules"`
	MainLang           string `json:"main_lang"`
	MinAuthorLength    int    `json:"min_author_length"`
	MaxAuthorLength    int    `json:"max_author_length"`
	MaxMessageLength   int    `json:"max_message_length"`
	MaxImageSize       int    `json:"max_image_size"`
	MaxGeoJSONFeatures int    `json:"max_geojson_features"`
	MaxStoredMessages  int    `json:"max_stored_messages"`
}

type statusResponse struct {
	Status   string          `json:"status"`
	Healthy  bool            `json:"healthy"`
	Channels []ChannelStatus `json:"channels"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// WebSocketHandler upgrades GET /channel/{channel}/ws and hands the
// connection to the hub. Unknown channels are refused before the upgrade.
func (a *API) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	ch, ok := a.channel(w, r)
	if !ok {
		return
	}

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Warn("WebSocket upgrade failed", logger.Client(r.RemoteAddr), logger.Error(err))
		return
	}

	a.hub.Serve(NewClient(conn, ch, r.RemoteAddr))
}

// VersionHandler reports the build version.
func (a *API) VersionHandler(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{"version": Version})
}

// ChannelsHandler lists the configured channel names.
func (a *API) ChannelsHandler(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, a.hub.ChannelNames())
}

// RulesHandler reports the rules text and the validation limits.
func (a *API) RulesHandler(w http.ResponseWriter, _ *http.Request) {
	cfg := a.hub.cfg
	a.writeJSON(w, http.StatusOK, rulesResponse{
		Rules:              cfg.Rules,
		MainLang:           cfg.MainLang,
		MinAuthorLength:    cfg.MinAuthorLength,
		MaxAuthorLength:    cfg.MaxAuthorLength,
		MaxMessageLength:   cfg.MaxMessageLength,
		MaxImageSize:       cfg.MaxImageSize,
		MaxGeoJSONFeatures: cfg.MaxGeoJSONFeatures,
		MaxStoredMessages:  cfg.MaxStoredMessages,
	})
}

// StatusHandler reports the connected-connection count of every channel.
func (a *API) StatusHandler(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, statusResponse{
		Status:   "ok",
		Healthy:  true,
		Channels: a.hub.Status(),
	})
}

// UsersHandler lists the registered authors of a channel.
func (a *API) UsersHandler(w http.ResponseWriter, r *http.Request) {
	ch, ok := a.channel(w, r)
	if !ok {
		return
	}
	a.writeJSON(w, http.StatusOK, ch.RegisteredUsers())
}

// LastMessagesHandler returns the stored history of a channel.
func (a *API) LastMessagesHandler(w http.ResponseWriter, r *http.Request) {
	ch, ok := a.channel(w, r)
	if !ok {
		return
	}

	stored, err := ch.History(r.Context())
	if err != nil {
		a.log.Error("Failed to read channel history", logger.Channel(ch.name), logger.Error(err))
		a.writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "history unavailable"})
		return
	}

	out := make([]json.RawMessage, 0, len(stored))
	for _, m := range stored {
		payload, err := protocol.Encode(m)
		if err != nil {
			a.log.Error("Failed to encode stored message", logger.Error(err))
			continue
		}
		out = append(out, payload)
	}
	a.writeJSON(w, http.StatusOK, out)
}

// PutTextHandler broadcasts a text message posted over HTTP and echoes it.
func (a *API) PutTextHandler(w http.ResponseWriter, r *http.Request) {
	ch, ok := a.channel(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxTextBodySize))
	if err != nil {
		a.writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Detail: err.Error()})
		return
	}

	var msg protocol.Text
	if err := json.Unmarshal(body, &msg); err != nil {
		a.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: fmt.Sprintf("invalid text message: %v", err)})
		return
	}

	if err := a.hub.PublishText(ch.name, msg); err != nil {
		var refused *protocol.ValidationError
		if errors.As(err, &refused) {
			a.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: refused.Reason})
			return
		}
		a.writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: err.Error()})
		return
	}

	a.writeJSON(w, http.StatusOK, json.RawMessage(protocol.MustEncode(msg)))
}

// LivenessHandler reports that the process is running.
func (a *API) LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "ALIVE")
}

// ReadinessHandler runs every readiness check and returns 503 on the first
// failure.
func (a *API) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	for _, check := range a.checks {
		if err := check(r.Context()); err != nil {
			a.log.Error("Readiness check failed", logger.Error(err))
			http.Error(w, "NOT READY", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "READY")
}

func (a *API) channel(w http.ResponseWriter, r *http.Request) (*Channel, bool) {
	name := r.PathValue("channel")
	ch, ok := a.hub.Channel(name)
	if !ok {
		a.writeJSON(w, http.StatusNotFound, errorResponse{Detail: fmt.Sprintf("Channel '%s' not registered", name)})
	}
	return ch, ok
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Error("Error writing JSON response", logger.Error(err))
	}
}

// TestPageHandler serves an HTML page for trying a channel from a browser.
func (a *API) TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	html := `<!DOCTYPE html>
<html>
<head>
    <title>gischat WebSocket Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        input[type="text"] {
            width: 200px;
            padding: 5px;
            margin-right: 10px;
        }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
        .status {
            margin: 10px 0;
            padding: 5px;
            border-radius: 3px;
        }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>gischat WebSocket Test</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div>
        <input type="text" id="channelInput" value="QGIS" placeholder="Channel">
        <input type="text" id="authorInput" placeholder="Author">
        <button id="connectButton" onclick="toggleConnection()">Connect</button>
    </div>
    <div style="margin-top: 10px">
        <input type="text" id="messageInput" placeholder="Type a message..." disabled>
        <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
    </div>

    <div id="messages"></div>

    <script>
        let ws = null;
        const messagesDiv = document.getElementById('messages');
        const messageInput = document.getElementById('messageInput');
        const sendButton = document.getElementById('sendButton');
        const connectButton = document.getElementById('connectButton');
        const statusDiv = document.getElementById('status');

        function addMessage(text, color) {
            const messageElement = document.createElement('div');
            messageElement.style.margin = '5px 0';
            messageElement.style.color = color || 'gray';
            messageElement.textContent = text;
            messagesDiv.appendChild(messageElement);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function describe(data) {
            switch (data.type) {
                case 'text': return '[' + data.author + '] ' + data.text;
                case 'nb_users': return data.nb_users + ' connected';
                case 'newcomer': return data.newcomer + ' joined';
                case 'exiter': return data.exiter + ' left';
                case 'like': return data.liker_author + ' liked your message: ' + data.message;
                case 'uncompliant': return 'refused: ' + data.reason;
                default: return '[' + (data.author || 'server') + '] shared ' + data.type;
            }
        }

        function updateStatus(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            messageInput.disabled = !connected;
            sendButton.disabled = !connected;
            connectButton.textContent = connected ? 'Disconnect' : 'Connect';
        }

        function connect() {
            const scheme = window.location.protocol === 'https:' ? 'wss://' : 'ws://';
            const channel = document.getElementById('channelInput').value;
            ws = new WebSocket(scheme + window.location.host + '/channel/' + encodeURIComponent(channel) + '/ws');

            ws.onopen = function() {
                updateStatus(true);
                const author = document.getElementById('authorInput').value;
                if (author) {
                    ws.send(JSON.stringify({type: 'newcomer', newcomer: author}));
                }
            };
            ws.onmessage = function(event) {
                addMessage(describe(JSON.parse(event.data)), 'green');
            };
            ws.onclose = function() {
                addMessage('Connection closed');
                updateStatus(false);
                ws = null;
            };
            ws.onerror = function() {
                addMessage('Connection error');
            };
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
            } else {
                connect();
            }
        }

        function sendMessage() {
            const text = messageInput.value.trim();
            const author = document.getElementById('authorInput').value;
            if (text && ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify({type: 'text', author: author, text: text}));
                messageInput.value = '';
            }
        }

        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') {
                sendMessage();
            }
        });
    </script>
</body>
</html>`
	if _, err := fmt.Fprint(w, html); err != nil {
		a.log.Error("Error writing HTML response", logger.Error(err))
	}
}
