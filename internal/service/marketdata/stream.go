package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hislov/overdrive-bot/internal/domain/models"
	"github.com/hislov/overdrive-bot/pkg/logger"

	"github.com/gorilla/websocket"
)

// Stream implements repository.QuoteStream over the provider WebSocket.
// One reader goroutine owns the connection and fans ticks out to per-run
// listeners; writes (subscribes, pings) are serialized behind a mutex.
// The pipeline uses it to resolve a live reference price for the winner
// before synthesizing the ladder.
type Stream struct {
	apiKey         string
	websocketURL   string
	pingInterval   time.Duration
	reconnectDelay time.Duration
	log            *logger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	closed    bool
	symbols   map[string]bool
	subs      map[int]chan *models.Quote
	nextSub   int
}

// NewStream creates a quote stream client.
func NewStream(apiKey, websocketURL string, pingInterval, reconnectDelay time.Duration, lgr *logger.Logger) *Stream {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if reconnectDelay <= 0 {
		reconnectDelay = 5 * time.Second
	}
	return &Stream{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		pingInterval:   pingInterval,
		reconnectDelay: reconnectDelay,
		log:            lgr,
		symbols:        make(map[string]bool),
		subs:           make(map[int]chan *models.Quote),
	}
}

// Connect establishes the WebSocket connection and starts the reader and
// ping loops. The reader redials on its own until Close.
func (s *Stream) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", s.websocketURL, s.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("quote stream connect: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()

	go s.run()
	go s.pingLoop()

	s.log.Info("quote stream connected")
	return nil
}

// Subscribe subscribes to the given symbols. Subscriptions are replayed
// after a reconnect.
func (s *Stream) Subscribe(ctx context.Context, symbols []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil || !s.connected {
		return fmt.Errorf("quote stream not connected")
	}

	for _, sym := range symbols {
		if s.symbols[sym] {
			continue
		}
		msg := map[string]string{"type": "subscribe", "symbol": sym}
		if err := s.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", sym, err)
		}
		s.symbols[sym] = true
	}
	return nil
}

// Listen registers a tick listener. The returned cancel must be called when
// the caller is done; the channel is closed on cancel or stream shutdown.
func (s *Stream) Listen() (<-chan *models.Quote, func()) {
	ch := make(chan *models.Quote, 256)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
			s.mu.Unlock()
		})
	}
	return ch, cancel
}

type wsTrade struct {
	S string  `json:"s"`
	P float64 `json:"p"`
	V float64 `json:"v"`
	T int64   `json:"t"` // ms
}

type wsMessage struct {
	Type string    `json:"type"`
	Data []wsTrade `json:"data"`
}

// run owns the single read loop, redialing after a drop until Close.
func (s *Stream) run() {
	for {
		s.readLoop()

		s.mu.Lock()
		s.connected = false
		closed := s.closed
		s.mu.Unlock()
		if closed {
			s.closeListeners()
			return
		}

		s.log.Warn("quote stream dropped, reconnecting",
			logger.Duration("delay", s.reconnectDelay))
		time.Sleep(s.reconnectDelay)

		s.mu.Lock()
		closed = s.closed
		s.mu.Unlock()
		if closed {
			s.closeListeners()
			return
		}

		if err := s.redial(); err != nil {
			s.log.Warn("quote stream redial failed", logger.Error(err))
		}
	}
}

func (s *Stream) readLoop() {
	for {
		s.mu.Lock()
		conn := s.conn
		connected := s.connected
		s.mu.Unlock()
		if conn == nil || !connected {
			return
		}

		_, b, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed {
				s.log.Warn("quote stream read", logger.Error(err))
			}
			return
		}

		var m wsMessage
		if err := json.Unmarshal(b, &m); err != nil {
			continue
		}
		if m.Type != "trade" {
			continue
		}

		s.mu.Lock()
		for _, d := range m.Data {
			q := &models.Quote{
				Symbol:    d.S,
				Timestamp: d.T / 1000,
				Price:     d.P,
				Volume:    d.V,
			}
			for _, ch := range s.subs {
				select {
				case ch <- q:
				default:
					// drop on backpressure
				}
			}
		}
		s.mu.Unlock()
	}
}

func (s *Stream) redial() error {
	u := fmt.Sprintf("%s?token=%s", s.websocketURL, s.apiKey)
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return conn.Close()
	}
	s.conn = conn
	s.connected = true
	for sym := range s.symbols {
		msg := map[string]string{"type": "subscribe", "symbol": sym}
		if err := conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("resubscribe %s: %w", sym, err)
		}
	}

	s.log.Info("quote stream reconnected", logger.Int("symbols", len(s.symbols)))
	return nil
}

func (s *Stream) pingLoop() {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for range ticker.C {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		if s.conn != nil && s.connected {
			_ = s.conn.WriteMessage(websocket.PingMessage, nil)
		}
		s.mu.Unlock()
	}
}

func (s *Stream) closeListeners() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// Close shuts the stream down. Listener channels close once the reader
// exits; if the reader never started they close here.
func (s *Stream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.connected = false
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	s.closeListeners()
	return nil
}

// IsConnected indicates connection status.
func (s *Stream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}
