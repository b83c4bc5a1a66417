package websocket

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gfearing/fearings-services/internal/estimator"
)

// TestConcurrentStatePushes pushes states to many sessions at once
func TestConcurrentStatePushes(t *testing.T) {
	hub := NewHub()

	numSessions := 10
	clients := make([]*Client, numSessions)
	for i := 0; i < numSessions; i++ {
		clients[i] = &Client{
			SessionID:   fmt.Sprintf("sess-%d", i),
			Send:        make(chan []byte, 256),
			Hub:         hub,
			ConnectedAt: time.Now(),
			LastPing:    time.Now(),
		}
		hub.registerClient(clients[i])
	}

	if hub.GetConnectionCount() != numSessions {
		t.Errorf("Expected %d connections, got %d", numSessions, hub.GetConnectionCount())
	}

	var wg sync.WaitGroup
	for i := 0; i < numSessions; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			hub.SendState(estimator.Snapshot{
				SessionID: fmt.Sprintf("sess-%d", idx),
				Status:    estimator.StatusLoading,
			})
		}(i)
	}
	wg.Wait()

	for i, client := range clients {
		drainWelcomeMessage(client)

		select {
		case <-client.Send:
		case <-time.After(100 * time.Millisecond):
			t.Errorf("Client %d did not receive state message", i)
		}
	}

	for _, client := range clients {
		hub.unregisterClient(client)
	}

	if hub.GetConnectionCount() != 0 {
		t.Errorf("Expected 0 connections after cleanup, got %d", hub.GetConnectionCount())
	}
}

// TestConcurrentClientRegistration tests thread safety of client registration
func TestConcurrentClientRegistration(t *testing.T) {
	hub := NewHub()

	numClients := 10
	var wg sync.WaitGroup

	clients := make([]*Client, numClients)
	for i := 0; i < numClients; i++ {
		clients[i] = &Client{
			SessionID:   "shared",
			Send:        make(chan []byte, 256),
			Hub:         hub,
			ConnectedAt: time.Now(),
			LastPing:    time.Now(),
		}
	}

	for i := 0; i < numClients; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			hub.registerClient(clients[idx])
		}(i)
	}
	wg.Wait()

	if hub.GetSessionConnectionCount("shared") != numClients {
		t.Errorf("Expected %d connections for shared session, got %d",
			numClients, hub.GetSessionConnectionCount("shared"))
	}

	for i := 0; i < numClients; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			hub.unregisterClient(clients[idx])
		}(i)
	}
	wg.Wait()

	if hub.GetConnectionCount() != 0 {
		t.Errorf("Expected 0 connections after concurrent unregister, got %d", hub.GetConnectionCount())
	}
}
