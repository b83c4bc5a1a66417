package websocket

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gfearing/fearings-services/internal/estimator"
	"github.com/gfearing/fearings-services/internal/model"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// drainWelcomeMessage drains the welcome message sent during client registration
func drainWelcomeMessage(client *Client) {
	select {
	case <-client.Send:
	case <-time.After(100 * time.Millisecond):
	}
}

func newTestClient(hub *Hub, sessionID string) *Client {
	return &Client{
		SessionID:   sessionID,
		Send:        make(chan []byte, 10),
		Hub:         hub,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}
}

type stateEnvelope struct {
	Type string             `json:"type"`
	Data estimator.Snapshot `json:"data"`
}

// For any state pushed to a session, every connection of that session
// receives it intact and no other session does
func TestEstimateStateDelivery(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("state is delivered with correct data", prop.ForAll(
		func(doable bool, price string, steps []string) bool {
			hub := NewHub()
			client := newTestClient(hub, "sess")
			hub.registerClient(client)
			drainWelcomeMessage(client)

			snap := estimator.Snapshot{
				SessionID: "sess",
				Status:    estimator.StatusSuccess,
				Estimate: &model.Estimate{
					IsDoable:       doable,
					SuggestedPrice: price,
					Breakdown:      steps,
				},
			}
			hub.SendState(snap)

			select {
			case msg := <-client.Send:
				var received stateEnvelope
				if err := json.Unmarshal(msg, &received); err != nil {
					return false
				}
				if received.Type != TypeEstimateState || received.Data.Status != estimator.StatusSuccess {
					return false
				}
				est := received.Data.Estimate
				if est == nil || est.IsDoable != doable || est.SuggestedPrice != price {
					return false
				}
				if len(est.Breakdown) != len(steps) {
					return false
				}
				for i := range steps {
					if est.Breakdown[i] != steps[i] {
						return false
					}
				}
				return true

			case <-time.After(100 * time.Millisecond):
				return false
			}
		},
		gen.Bool(),
		gen.AlphaString(),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.Property("states are delivered only to the target session", prop.ForAll(
		func(targetNum int, otherNum int) bool {
			targetID := "sess" + string(rune('A'+targetNum%26))
			otherID := "sess" + string(rune('a'+otherNum%26))

			hub := NewHub()
			target := newTestClient(hub, targetID)
			other := newTestClient(hub, otherID)
			hub.registerClient(target)
			hub.registerClient(other)
			drainWelcomeMessage(target)
			drainWelcomeMessage(other)

			hub.SendState(estimator.Snapshot{SessionID: targetID, Status: estimator.StatusLoading})

			targetReceived := false
			select {
			case <-target.Send:
				targetReceived = true
			case <-time.After(100 * time.Millisecond):
			}

			otherReceived := false
			select {
			case <-other.Send:
				otherReceived = true
			case <-time.After(10 * time.Millisecond):
			}

			return targetReceived && !otherReceived
		},
		gen.IntRange(0, 25),
		gen.IntRange(0, 25),
	))

	properties.TestingRun(t)
}

func TestFailedStateCarriesOnlyGenericMessage(t *testing.T) {
	hub := NewHub()
	client := newTestClient(hub, "s1")
	hub.registerClient(client)
	drainWelcomeMessage(client)

	sess := estimator.NewSession("s1")
	sess.OnChange(hub.SendState)
	if err := sess.Begin("mow my lawn"); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	sess.Fail()

	var statuses []estimator.Status
	for i := 0; i < 2; i++ {
		select {
		case msg := <-client.Send:
			var received stateEnvelope
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("Failed to unmarshal: %v", err)
			}
			statuses = append(statuses, received.Data.Status)
			if received.Data.Status == estimator.StatusFailed && received.Data.Error != model.GenericFailureMessage {
				t.Errorf("Expected generic failure message, got %q", received.Data.Error)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Expected message %d", i)
		}
	}

	if statuses[0] != estimator.StatusLoading || statuses[1] != estimator.StatusFailed {
		t.Errorf("Expected loading then failed, got %v", statuses)
	}
}

// Test WebSocket connection management
func TestWebSocketConnectionManagement(t *testing.T) {
	hub := NewHub()

	if hub.GetConnectionCount() != 0 {
		t.Errorf("Initial connection count should be 0, got %d", hub.GetConnectionCount())
	}

	client1 := newTestClient(hub, "s1")
	client2 := newTestClient(hub, "s1") // same session, second tab
	client3 := newTestClient(hub, "s2")

	hub.RegisterClient(client1)
	hub.RegisterClient(client2)
	hub.RegisterClient(client3)

	if hub.GetConnectionCount() != 3 {
		t.Errorf("Total connection count should be 3, got %d", hub.GetConnectionCount())
	}
	if hub.GetSessionConnectionCount("s1") != 2 {
		t.Errorf("s1 connection count should be 2, got %d", hub.GetSessionConnectionCount("s1"))
	}

	hub.UnregisterClient(client1)
	if hub.GetSessionConnectionCount("s1") != 1 {
		t.Errorf("s1 connection count should be 1 after unregistering, got %d", hub.GetSessionConnectionCount("s1"))
	}

	// unregistering twice is a no-op
	hub.UnregisterClient(client1)

	hub.UnregisterClient(client2)
	if hub.GetSessionConnectionCount("s1") != 0 {
		t.Errorf("s1 connection count should be 0, got %d", hub.GetSessionConnectionCount("s1"))
	}
	if hub.GetConnectionCount() != 1 {
		t.Errorf("Total connection count should be 1, got %d", hub.GetConnectionCount())
	}
}

func TestFullBufferDropsClient(t *testing.T) {
	hub := NewHub()
	client := &Client{SessionID: "s1", Send: make(chan []byte, 1), Hub: hub}
	hub.registerClient(client) // welcome message fills the buffer

	hub.SendState(estimator.Snapshot{SessionID: "s1", Status: estimator.StatusLoading})

	if hub.GetSessionConnectionCount("s1") != 0 {
		t.Errorf("Expected slow client to be dropped")
	}

	// drain the welcome message, then the channel must be closed
	<-client.Send
	if _, ok := <-client.Send; ok {
		t.Errorf("Expected send channel to be closed")
	}

	// a late message to a closed client must not panic
	client.SendMessage(Message{Type: TypePong})
}

func TestRegisterSendsStateReadAtRegistration(t *testing.T) {
	hub := NewHub()
	status := estimator.StatusIdle
	client := newTestClient(hub, "s1")
	client.current = func() estimator.Snapshot {
		return estimator.Snapshot{SessionID: "s1", Status: status}
	}

	// Changes between the upgrade and registration must not be lost
	status = estimator.StatusLoading
	hub.registerClient(client)

	drainWelcomeMessage(client)
	var msg stateEnvelope
	if err := json.Unmarshal(<-client.Send, &msg); err != nil {
		t.Fatalf("Failed to decode state: %v", err)
	}
	if msg.Type != TypeEstimateState || msg.Data.Status != estimator.StatusLoading {
		t.Errorf("Expected loading state, got %s %s", msg.Type, msg.Data.Status)
	}
}

// lastState returns the status of the last estimate_state message queued for client
func lastState(t *testing.T, client *Client) estimator.Status {
	t.Helper()
	var last estimator.Status
	for {
		select {
		case data := <-client.Send:
			var msg stateEnvelope
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatalf("Failed to decode message: %v", err)
			}
			if msg.Type == TypeEstimateState {
				last = msg.Data.Status
			}
		default:
			return last
		}
	}
}

// For any interleaving of registration and transitions, the last state a
// client receives is the session's final state
func TestRegisterRacingTransitionsEndsOnFinalState(t *testing.T) {
	for i := 0; i < 200; i++ {
		hub := NewHub()
		sess := estimator.NewSession("s1")
		sess.OnChange(hub.SendState)

		client := newTestClient(hub, "s1")
		client.current = sess.Snapshot

		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := sess.Begin("mow the lawn"); err != nil {
				t.Errorf("Begin failed: %v", err)
				return
			}
			sess.Succeed(&model.Estimate{IsDoable: true, SuggestedPrice: "$17"})
		}()
		hub.registerClient(client)
		<-done

		if got := lastState(t, client); got != estimator.StatusSuccess {
			t.Fatalf("Iteration %d: expected last state success, got %q", i, got)
		}
	}
}

func TestStopClosesClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := newTestClient(hub, "s1")
	hub.register <- client

	hub.Stop()
	hub.Stop()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-client.Send:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("client channel was not closed on stop")
		}
	}
}

func TestSameOrigin(t *testing.T) {
	tests := []struct {
		origin string
		host   string
		want   bool
	}{
		{"", "example.com", true},
		{"https://example.com", "example.com", true},
		{"http://localhost:8080", "localhost:8080", true},
		{"https://evil.com", "example.com", false},
		{"://bad", "example.com", false},
	}

	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/ws", nil)
		r.Host = tt.host
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := sameOrigin(r); got != tt.want {
			t.Errorf("sameOrigin(%q, %q) = %v, want %v", tt.origin, tt.host, got, tt.want)
		}
	}
}
