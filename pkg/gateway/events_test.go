package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/picocast/pkg/bus"
	"github.com/sipeed/picocast/pkg/config"
)

func TestEvents_StreamsFilteredSession(t *testing.T) {
	eb := bus.NewEventBus()
	defer eb.Close()

	srv := NewServer(config.GatewayConfig{}, &fakeProducer{}, nil, eb)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events?session=s1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The subscription is registered after the upgrade completes, so keep
	// publishing until the client sees something.
	done := make(chan struct{})
	defer close(done)
	go func() {
		tick := time.NewTicker(20 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-done:
				return
			case <-tick.C:
				eb.Publish(bus.Event{Kind: bus.EventTurnAppended, SessionID: "s2"})
				eb.Publish(bus.Event{Kind: bus.EventSessionStarted, SessionID: "s1", Data: map[string]any{"metrics": 3}})
			}
		}
	}()

	for i := 0; i < 3; i++ {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var ev bus.Event
		require.NoError(t, json.Unmarshal(data, &ev))
		assert.Equal(t, "s1", ev.SessionID)
		assert.Equal(t, bus.EventSessionStarted, ev.Kind)
		assert.EqualValues(t, 3, ev.Data["metrics"])
	}
}

func TestEvents_DisabledWithoutBus(t *testing.T) {
	srv := NewServer(config.GatewayConfig{}, &fakeProducer{}, nil, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestEvents_ClosedWhenBusCloses(t *testing.T) {
	eb := bus.NewEventBus()
	srv := NewServer(config.GatewayConfig{}, &fakeProducer{}, nil, eb)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/events", nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give the handler time to subscribe before closing.
	time.Sleep(50 * time.Millisecond)
	eb.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
