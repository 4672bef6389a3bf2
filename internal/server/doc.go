// Package server implements the gischat relay: a fixed set of named
// channels, each a broadcast domain where websocket clients register an
// author name and exchange chat and GIS messages.
//
// The implementation is organized into specialized files for configuration,
// the hub and its channels, per-connection clients, routing, and HTTP
// handlers. Message parsing and validation live in package protocol, image
// bounding in package media, and message history in package history.
package server
