package config

import (
	"strings"
	"sync"
)

// Handle holds the engine base URL for the process. It is written by one place
// (settings changes) and read by every client request.
type Handle struct {
	mu        sync.RWMutex
	serverURL string
}

func NewHandle(serverURL string) *Handle {
	h := &Handle{}
	h.SetServerURL(serverURL)

	return h
}

// ServerURL returns the engine base URL without a trailing slash.
func (h *Handle) ServerURL() string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.serverURL
}

// SetServerURL replaces the engine base URL. An empty value restores the default.
func (h *Handle) SetServerURL(serverURL string) {
	serverURL = strings.TrimRight(strings.TrimSpace(serverURL), "/")
	if serverURL == "" {
		serverURL = DefaultServerURL
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.serverURL = serverURL
}
