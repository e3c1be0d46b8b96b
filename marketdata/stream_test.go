package marketdata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// newFeedServer serves ticks to the first client after it receives a subscription.
func newFeedServer(t *testing.T, ticks []string, closeAfter bool) (*httptest.Server, <-chan SubscriptionMessage) {
	t.Helper()

	subs := make(chan SubscriptionMessage, 4)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub SubscriptionMessage
		if err := json.Unmarshal(data, &sub); err == nil {
			subs <- sub
		}

		for _, raw := range ticks {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
				return
			}
		}

		if closeAfter {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
		// hold the connection open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	return srv, subs
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStreamCollectUntilClose(t *testing.T) {
	ticks := []string{
		`{"timestamp":"2024-01-02T09:30:00Z","symbol":"AAPL","price":150.25,"volume":10}`,
		`not json`,
		`{"timestamp":"2024-01-02T09:30:01Z","symbol":"AAPL","price":-1,"volume":10}`,
		`{"timestamp":"2024-01-02T09:30:02Z","symbol":"AAPL","price":150.5,"volume":12}`,
	}
	srv, subs := newFeedServer(t, ticks, true)

	cfg := DefaultStreamConfig(wsURL(srv))
	cfg.Symbols = []string{"AAPL"}
	stream := NewStream(cfg, zaptest.NewLogger(t))
	defer stream.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, stream.Connect(ctx))

	select {
	case sub := <-subs:
		assert.Equal(t, SubscriptionMessage{Method: "subscribe", Symbol: "AAPL"}, sub)
	case <-ctx.Done():
		t.Fatal("timeout waiting for subscription")
	}

	series, err := stream.Collect(ctx, 0)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, 150.25, series[0].Price)
	assert.Equal(t, 150.5, series[1].Price)
}

func TestStreamCollectLimit(t *testing.T) {
	ticks := []string{
		`{"symbol":"MSFT","price":280.1,"volume":1}`,
		`{"symbol":"MSFT","price":280.2,"volume":1}`,
		`{"symbol":"MSFT","price":280.3,"volume":1}`,
	}
	srv, _ := newFeedServer(t, ticks, false)

	cfg := DefaultStreamConfig(wsURL(srv))
	cfg.Symbols = []string{"MSFT"}
	stream := NewStream(cfg, zaptest.NewLogger(t))
	defer stream.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, stream.Connect(ctx))
	series, err := stream.Collect(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{280.1, 280.2}, series.Prices("MSFT"))
}

func TestStreamRequiresConnect(t *testing.T) {
	stream := NewStream(DefaultStreamConfig("ws://127.0.0.1:1"), nil)

	require.ErrorIs(t, stream.Subscribe("AAPL"), ErrStreamNotConnected)
	_, err := stream.Collect(context.Background(), 1)
	require.ErrorIs(t, err, ErrStreamNotConnected)
}
