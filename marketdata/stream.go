package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrStreamNotConnected is returned when the stream is used before Connect.
var ErrStreamNotConnected = errors.New("market data stream not connected")

// StreamConfig holds configuration for a websocket tick feed.
type StreamConfig struct {
	URL              string        // websocket endpoint
	Symbols          []string      // subscribed right after connecting
	HandshakeTimeout time.Duration // dial handshake limit
	ReadTimeout      time.Duration // per-message read deadline, 0 disables
}

// DefaultStreamConfig returns a stream configuration for url.
func DefaultStreamConfig(url string) StreamConfig {
	return StreamConfig{
		URL:              url,
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      60 * time.Second,
	}
}

// SubscriptionMessage asks the feed to publish ticks for a symbol.
type SubscriptionMessage struct {
	Method string `json:"method"`
	Symbol string `json:"symbol"`
}

// Stream reads JSON encoded PricePoints from a websocket feed.
type Stream struct {
	config StreamConfig
	dialer *websocket.Dialer
	logger *zap.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewStream creates a stream. It does not dial until Connect is called.
func NewStream(config StreamConfig, logger *zap.Logger) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{
		config: config,
		dialer: &websocket.Dialer{
			HandshakeTimeout: config.HandshakeTimeout,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
		},
		logger: logger.Named("marketdata"),
	}
}

// Connect dials the feed and subscribes to the configured symbols.
func (s *Stream) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.conn != nil {
		s.mu.Unlock()
		return nil
	}

	s.logger.Info("Connecting to market data feed", zap.String("url", s.config.URL))
	conn, _, err := s.dialer.DialContext(ctx, s.config.URL, nil)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to dial market data feed: %w", err)
	}
	s.conn = conn
	s.mu.Unlock()

	for _, symbol := range s.config.Symbols {
		if err := s.Subscribe(symbol); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe sends a subscription request for symbol.
func (s *Stream) Subscribe(symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return ErrStreamNotConnected
	}

	data, err := json.Marshal(SubscriptionMessage{Method: "subscribe", Symbol: symbol})
	if err != nil {
		return fmt.Errorf("failed to marshal subscription: %w", err)
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send subscription: %w", err)
	}

	s.logger.Info("Subscribed to market data", zap.String("symbol", symbol))
	return nil
}

// Run reads ticks and hands each valid one to handler until the context is
// cancelled, the feed closes normally, or handler returns an error.
func (s *Stream) Run(ctx context.Context, handler func(PricePoint) error) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrStreamNotConnected
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		if s.config.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		}

		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Info("Market data feed closed")
				return nil
			}
			return fmt.Errorf("failed to read market data: %w", err)
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var point PricePoint
		if err := json.Unmarshal(data, &point); err != nil {
			s.logger.Warn("Dropping undecodable tick", zap.Error(err))
			continue
		}
		if !isValidPoint(point) {
			s.logger.Warn("Dropping invalid tick",
				zap.String("symbol", point.Symbol),
				zap.Float64("price", point.Price))
			continue
		}

		if err := handler(point); err != nil {
			return err
		}
	}
}

// errCollected stops Run once Collect has enough points.
var errCollected = errors.New("collected")

// Collect reads ticks into a Series. A limit of zero or less reads until the feed closes.
func (s *Stream) Collect(ctx context.Context, limit int) (Series, error) {
	series := make(Series, 0)
	err := s.Run(ctx, func(p PricePoint) error {
		series = append(series, p)
		if limit > 0 && len(series) >= limit {
			return errCollected
		}
		return nil
	})
	if err != nil && !errors.Is(err, errCollected) {
		return series, err
	}
	return series, nil
}

// Close sends a close frame and releases the connection.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := s.conn.Close()
	s.conn = nil
	return err
}

func isValidPoint(p PricePoint) bool {
	return p.Symbol != "" && p.Price > 0 && p.Volume >= 0
}
