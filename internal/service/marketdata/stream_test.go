package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hislov/overdrive-bot/internal/domain/models"
	"github.com/hislov/overdrive-bot/pkg/logger"
)

var upgrader = websocket.Upgrader{}

// tradeServer upgrades each connection, waits for one subscribe frame, then
// writes a trade for the subscribed symbol and runs onSent.
func tradeServer(t *testing.T, price float64, onSent func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		var sub struct {
			Type   string `json:"type"`
			Symbol string `json:"symbol"`
		}
		if err := conn.ReadJSON(&sub); err != nil {
			conn.Close()
			return
		}
		msg := map[string]interface{}{
			"type": "trade",
			"data": []map[string]interface{}{
				{"s": sub.Symbol, "p": price, "v": 100, "t": time.Now().UnixMilli()},
			},
		}
		_ = conn.WriteJSON(msg)
		onSent(conn)
	}))
}

func wsURL(srv *httptest.Server) string {
	return strings.Replace(srv.URL, "http", "ws", 1)
}

func recvQuote(t *testing.T, ch <-chan *models.Quote) *models.Quote {
	t.Helper()
	select {
	case q, ok := <-ch:
		if !ok {
			t.Fatalf("listener channel closed before a tick arrived")
		}
		return q
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a tick")
	}
	return nil
}

func TestStreamFansOutToListeners(t *testing.T) {
	block := make(chan struct{})
	srv := tradeServer(t, 101.5, func(conn *websocket.Conn) { <-block })
	defer srv.Close()
	defer close(block)

	s := NewStream("", wsURL(srv), time.Minute, time.Minute, logger.Nop())
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close()

	one, cancelOne := s.Listen()
	two, cancelTwo := s.Listen()
	defer cancelOne()
	defer cancelTwo()

	if err := s.Subscribe(context.Background(), []string{"AAPL"}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	for _, ch := range []<-chan *models.Quote{one, two} {
		q := recvQuote(t, ch)
		if q.Symbol != "AAPL" || q.Price != 101.5 {
			t.Fatalf("got %s @ %.2f, want AAPL @ 101.50", q.Symbol, q.Price)
		}
	}
}

func TestStreamListenCancelClosesChannel(t *testing.T) {
	s := NewStream("", "ws://unused", time.Minute, time.Minute, logger.Nop())

	ch, cancel := s.Listen()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed after cancel")
	}
	cancel() // second cancel is a no-op
}

func TestStreamCloseClosesListeners(t *testing.T) {
	block := make(chan struct{})
	srv := tradeServer(t, 50, func(conn *websocket.Conn) { <-block })
	defer srv.Close()
	defer close(block)

	s := NewStream("", wsURL(srv), time.Minute, time.Minute, logger.Nop())
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	ch, _ := s.Listen()
	if err := s.Close(); err != nil {
		t.Logf("close: %v", err)
	}

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("no tick was subscribed; channel should only close")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("listener channel still open after Close")
	}
}

func TestStreamReconnectReplaysSubscriptions(t *testing.T) {
	srv := tradeServer(t, 75, func(conn *websocket.Conn) { conn.Close() })
	defer srv.Close()

	s := NewStream("", wsURL(srv), time.Minute, 20*time.Millisecond, logger.Nop())
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close()

	ch, cancel := s.Listen()
	defer cancel()

	if err := s.Subscribe(context.Background(), []string{"TSLA"}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// Each server connection sends one trade and hangs up; receiving two
	// ticks proves the stream redialed and resubscribed on its own.
	for i := 0; i < 2; i++ {
		q := recvQuote(t, ch)
		if q.Symbol != "TSLA" {
			t.Fatalf("tick %d: got %s, want TSLA", i+1, q.Symbol)
		}
	}
}
