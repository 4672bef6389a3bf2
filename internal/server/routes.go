// Package server wires HTTP handlers into a ServeMux for the gischat
// relay via routing helpers.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all application
// routes. checks gate the readiness probe.
func SetupRoutes(hub *Hub, checks ...ReadinessCheck) *http.ServeMux {
	api := NewAPI(hub, checks...)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", api.TestPageHandler)
	mux.HandleFunc("GET /version", api.VersionHandler)
	mux.HandleFunc("GET /channels", api.ChannelsHandler)
	mux.HandleFunc("GET /rules", api.RulesHandler)
	mux.HandleFunc("GET /status", api.StatusHandler)

	// Existing QGIS plugin clients address channels as rooms.
	mux.HandleFunc("GET /rooms", api.ChannelsHandler)
	for _, prefix := range []string{"/channel", "/room"} {
		mux.HandleFunc("GET "+prefix+"/{channel}/users", api.UsersHandler)
		mux.HandleFunc("GET "+prefix+"/{channel}/last", api.LastMessagesHandler)
		mux.HandleFunc("PUT "+prefix+"/{channel}/text", api.PutTextHandler)
		mux.HandleFunc("GET "+prefix+"/{channel}/ws", api.WebSocketHandler)
	}
	mux.HandleFunc("GET /health/live", api.LivenessHandler)
	mux.HandleFunc("GET /health/ready", api.ReadinessHandler)
	return mux
}
