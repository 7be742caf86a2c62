package sessions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vladimiradmaev/tacticmap/internal/logger"
	"github.com/vladimiradmaev/tacticmap/internal/session"
	"github.com/vladimiradmaev/tacticmap/internal/simulator"
	"github.com/vladimiradmaev/tacticmap/internal/storage"
	"github.com/vladimiradmaev/tacticmap/internal/telemetry"
)

// Delays are the simulated latencies used by chat screens
type Delays struct {
	Login      time.Duration
	BLEScan    time.Duration
	BLEConnect time.Duration
	StreamTick time.Duration
}

// Chat bundles the state containers of one Telegram chat
type Chat struct {
	ID        int64
	Session   *session.Store
	Telemetry *telemetry.Store
	Scanner   *simulator.BLEScanner
	Streamer  *simulator.Streamer
	Capture   *simulator.Capture

	mu         sync.Mutex
	stopStream context.CancelFunc
}

// StartStream runs the jitter streamer until StopStream or ctx ends
func (c *Chat) StartStream(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopStream != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	c.stopStream = cancel
	go func() {
		_ = c.Streamer.Run(ctx)
	}()
}

// StopStream stops a running streamer
func (c *Chat) StopStream() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopStream != nil {
		c.stopStream()
		c.stopStream = nil
	}
}

// Registry lazily opens one Chat per chat id
type Registry struct {
	kv         storage.KeyValue
	namespace  string
	opts       []session.Option
	delays     Delays
	demoLesion bool

	mu    sync.Mutex
	chats map[int64]*Chat
}

// NewRegistry creates a registry persisting sessions under namespace:<chat id>
func NewRegistry(kv storage.KeyValue, namespace string, delays Delays, demoLesion bool, opts ...session.Option) *Registry {
	if namespace == "" {
		namespace = session.DefaultKey
	}
	return &Registry{
		kv:         kv,
		namespace:  namespace,
		opts:       opts,
		delays:     delays,
		demoLesion: demoLesion,
		chats:      make(map[int64]*Chat),
	}
}

// Delays returns the configured latencies
func (r *Registry) Delays() Delays {
	return r.delays
}

// Get returns the chat, rehydrating its session on first use
func (r *Registry) Get(ctx context.Context, chatID int64) (*Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if chat, ok := r.chats[chatID]; ok {
		return chat, nil
	}

	store, err := session.Open(ctx, r.kv, fmt.Sprintf("%s:%d", r.namespace, chatID), r.opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open session for chat %d: %w", chatID, err)
	}

	var topts []telemetry.Option
	if r.demoLesion {
		topts = append(topts, telemetry.WithDemoLesion(time.Now()))
	}
	tel := telemetry.NewStore(topts...)

	chat := &Chat{
		ID:        chatID,
		Session:   store,
		Telemetry: tel,
		Scanner:   simulator.NewBLEScanner(tel, r.delays.BLEScan, r.delays.BLEConnect),
		Streamer:  simulator.NewStreamer(tel, r.delays.StreamTick, nil),
		Capture:   simulator.NewCapture(),
	}
	r.chats[chatID] = chat
	logger.Info("Chat session opened", "chat_id", chatID, "step", store.Step())
	return chat, nil
}

// Close stops every chat's background work
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, chat := range r.chats {
		chat.StopStream()
		chat.Scanner.Disconnect()
	}
}
