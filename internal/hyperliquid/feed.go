package hyperliquid

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	feedPingInterval  = 30 * time.Second
	feedStaleAfter    = 30 * time.Second
	feedMaxReconnects = 10
	feedReconnectWait = 5 * time.Second
)

type midEntry struct {
	price     float64
	updatedAt time.Time
}

// Feed maintains a websocket subscription to allMids and caches the latest
// mid price per coin.
type Feed struct {
	url    string
	dialer *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn

	cacheMu sync.RWMutex
	mids    map[string]midEntry

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewFeed(useTestnet bool) *Feed {
	url := MainnetWSURL
	if useTestnet {
		url = TestnetWSURL
	}

	return &Feed{
		url: url,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
		},
		mids: make(map[string]midEntry),
	}
}

// Start connects, subscribes and launches the read/ping loops.
func (f *Feed) Start(ctx context.Context) error {
	ctx, f.cancel = context.WithCancel(ctx)

	if err := f.connect(); err != nil {
		return err
	}

	f.wg.Add(2)
	go f.readLoop(ctx)
	go f.pingLoop(ctx)

	log.Info().Str("url", f.url).Msg("price feed started")
	return nil
}

// Stop closes the connection and waits for the loops to exit.
func (f *Feed) Stop() {
	if f.cancel != nil {
		f.cancel()
	}

	f.mu.Lock()
	if f.conn != nil {
		f.conn.Close()
	}
	f.mu.Unlock()

	f.wg.Wait()
	log.Info().Msg("price feed stopped")
}

// Mid returns the cached mid price for a coin, refusing stale entries.
func (f *Feed) Mid(symbol string) (float64, bool) {
	f.cacheMu.RLock()
	defer f.cacheMu.RUnlock()

	entry, ok := f.mids[symbol]
	if !ok || time.Since(entry.updatedAt) > feedStaleAfter {
		return 0, false
	}
	return entry.price, true
}

func (f *Feed) connect() error {
	conn, _, err := f.dialer.Dial(f.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial websocket: %w", err)
	}

	sub := map[string]any{
		"method":       "subscribe",
		"subscription": map[string]any{"type": "allMids"},
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("failed to subscribe to allMids: %w", err)
	}

	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()
	return nil
}

func (f *Feed) readLoop(ctx context.Context) {
	defer f.wg.Done()

	attempts := 0
	for {
		f.mu.Lock()
		conn := f.conn
		f.mu.Unlock()

		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			attempts++
			if attempts > feedMaxReconnects {
				log.Error().Int("attempts", attempts-1).Msg("price feed gave up reconnecting")
				return
			}

			log.Warn().Err(err).Int("attempt", attempts).Msg("price feed read failed, reconnecting")
			select {
			case <-ctx.Done():
				return
			case <-time.After(feedReconnectWait):
			}

			if err := f.connect(); err != nil {
				log.Error().Err(err).Msg("price feed reconnect failed")
			}
			continue
		}

		attempts = 0
		f.handleMessage(raw)
	}
}

func (f *Feed) handleMessage(raw []byte) {
	var msg struct {
		Channel string `json:"channel"`
		Data    struct {
			Mids map[string]string `json:"mids"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Channel != "allMids" {
		return
	}

	now := time.Now()
	f.cacheMu.Lock()
	for coin, px := range msg.Data.Mids {
		price, err := strconv.ParseFloat(px, 64)
		if err != nil || price <= 0 {
			continue
		}
		f.mids[coin] = midEntry{price: price, updatedAt: now}
	}
	f.cacheMu.Unlock()
}

func (f *Feed) pingLoop(ctx context.Context) {
	defer f.wg.Done()

	ticker := time.NewTicker(feedPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.mu.Lock()
			conn := f.conn
			f.mu.Unlock()
			if conn == nil {
				continue
			}
			if err := conn.WriteJSON(map[string]string{"method": "ping"}); err != nil {
				log.Warn().Err(err).Msg("price feed ping failed")
			}
		}
	}
}
