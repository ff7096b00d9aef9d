// Package gateway maintains the bot's Discord Gateway session and hands
// inbound interactions to the dispatcher.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/parsascontentcorner/phoenix/internal/config"
	"github.com/parsascontentcorner/phoenix/internal/discord"
	"github.com/parsascontentcorner/phoenix/internal/metrics"
)

const (
	gatewayVersion  = "10"
	gatewayEncoding = "json"

	// Gateway opcodes
	opDispatch       = 0  // Receive: Event dispatch
	opHeartbeat      = 1  // Send/Receive: Heartbeat
	opIdentify       = 2  // Send: Identify (begin session)
	opResume         = 6  // Send: Resume session
	opReconnect      = 7  // Receive: Reconnect
	opInvalidSession = 9  // Receive: Invalid session
	opHello          = 10 // Receive: Hello (heartbeat interval)
	opHeartbeatACK   = 11 // Receive: Heartbeat ACK

	// Gateway close codes
	closeUnknownError         = 4000
	closeAuthenticationFailed = 4004
	closeInvalidSeq           = 4007
	closeSessionTimedOut      = 4009
	closeInvalidShard         = 4010
	closeShardingRequired     = 4011
	closeInvalidAPIVersion    = 4012
	closeInvalidIntents       = 4013
	closeDisallowedIntents    = 4014

	intentGuilds = 1 << 0

	// handlerGrace bounds how long in-flight interactions may keep running
	// once Run has been cancelled
	handlerGrace = 10 * time.Second
)

var (
	// ErrFatalClose is returned by Run when Discord closes the session with
	// a code that reconnecting cannot fix (bad token, bad intents)
	ErrFatalClose = errors.New("gateway closed with a non-recoverable code")

	errReconnect = errors.New("gateway requested reconnect")
	errZombie    = errors.New("gateway heartbeat not acknowledged")
)

// InteractionHandler receives every INTERACTION_CREATE event
type InteractionHandler func(ctx context.Context, i *discord.Interaction)

// URLFetcher resolves the gateway URL. *discord.Client implements it.
type URLFetcher interface {
	GetGatewayBot(ctx context.Context) (*discord.GatewayBot, error)
}

// Payload represents a Discord Gateway message
type Payload struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d,omitempty"`
	S  *int64          `json:"s,omitempty"`
	T  *string         `json:"t,omitempty"`
}

// HelloPayload represents the HELLO event data
type HelloPayload struct {
	HeartbeatInterval int `json:"heartbeat_interval"`
}

// ReadyPayload represents the READY event data
type ReadyPayload struct {
	SessionID        string        `json:"session_id"`
	ResumeGatewayURL string        `json:"resume_gateway_url"`
	User             *discord.User `json:"user"`
}

type identifyData struct {
	Token      string             `json:"token"`
	Intents    int                `json:"intents"`
	Properties identifyProperties `json:"properties"`
}

type identifyProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

type resumeData struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Seq       int64  `json:"seq"`
}

// Gateway is a reconnecting bot Gateway connection
type Gateway struct {
	token      string
	fetcher    URLFetcher
	handler    InteractionHandler
	metrics    *metrics.Metrics
	logger     *zap.Logger
	dialer     *websocket.Dialer
	newBackOff func() backoff.BackOff

	// WebSocket connection; writes are serialized by connMu
	conn   *websocket.Conn
	connMu sync.Mutex

	// Session info
	sessionMu  sync.RWMutex
	sessionID  string
	resumeURL  string
	gatewayURL string
	sequence   atomic.Int64

	connected atomic.Bool
	acked     atomic.Bool

	// handlerCtx outlives sessions and Run's ctx; it ends handlerGrace
	// after shutdown begins
	handlerCtx   context.Context
	handlerGrace time.Duration
	handlers     sync.WaitGroup
}

// New creates a Gateway. handler is called on its own goroutine for each interaction.
func New(cfg *config.DiscordConfig, fetcher URLFetcher, handler InteractionHandler, m *metrics.Metrics, logger *zap.Logger) *Gateway {
	return &Gateway{
		token:        cfg.BotToken,
		fetcher:      fetcher,
		handler:      handler,
		metrics:      m,
		logger:       logger,
		dialer:       websocket.DefaultDialer,
		handlerGrace: handlerGrace,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = time.Minute
			b.MaxElapsedTime = 0 // retry until the context ends
			return b
		},
	}
}

// Run connects and keeps the session alive until ctx is cancelled. It
// returns nil on cancellation, after in-flight handlers finish. Handlers
// run on a context that survives reconnects and the cancellation of ctx
// for up to the handler grace period.
func (g *Gateway) Run(ctx context.Context) error {
	handlerCtx, cancelHandlers := context.WithCancel(context.WithoutCancel(ctx))
	g.handlerCtx = handlerCtx
	defer g.drainHandlers(cancelHandlers)

	b := backoff.WithContext(g.newBackOff(), ctx)
	for {
		ready, err := g.runSession(ctx)
		g.connected.Store(false)

		if ctx.Err() != nil {
			g.logger.Info("gateway stopped")
			return nil
		}
		if errors.Is(err, ErrFatalClose) {
			return err
		}
		if ready {
			b.Reset()
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return fmt.Errorf("gateway reconnect abandoned: %w", err)
		}

		g.metrics.ObserveGatewayReconnect()
		g.logger.Warn("gateway session ended, reconnecting",
			zap.Error(err),
			zap.Duration("backoff", wait),
			zap.Bool("resumable", g.canResume()),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			g.logger.Info("gateway stopped")
			return nil
		case <-timer.C:
		}
	}
}

// drainHandlers waits for in-flight handlers, cancelling their context
// when they outlast the grace period
func (g *Gateway) drainHandlers(cancel context.CancelFunc) {
	defer cancel()

	done := make(chan struct{})
	go func() {
		g.handlers.Wait()
		close(done)
	}()

	timer := time.NewTimer(g.handlerGrace)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		g.logger.Warn("interaction handlers outlived the shutdown grace period, cancelling them",
			zap.Duration("grace", g.handlerGrace))
		cancel()
		<-done
	}
}

// runSession runs one connection until it fails or ctx ends. ready reports
// whether the session reached READY or RESUMED.
func (g *Gateway) runSession(ctx context.Context) (ready bool, err error) {
	gatewayURL, err := g.connectURL(ctx)
	if err != nil {
		return false, err
	}

	g.logger.Info("connecting to Discord Gateway", zap.String("gateway_url", gatewayURL))

	conn, _, err := g.dialer.DialContext(ctx, gatewayURL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to dial Gateway: %w", err)
	}

	sessCtx, cancel := context.WithCancel(ctx)
	g.connMu.Lock()
	g.conn = conn
	g.connMu.Unlock()

	var heartbeats sync.WaitGroup
	defer func() {
		cancel()
		heartbeats.Wait()
		g.connMu.Lock()
		_ = conn.Close()
		g.conn = nil
		g.connMu.Unlock()
	}()

	// Unblock the read below when the session ends
	go func() {
		<-sessCtx.Done()
		_ = conn.UnderlyingConn().Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return ready, g.classifyReadError(err)
		}

		var payload Payload
		if err := json.Unmarshal(message, &payload); err != nil {
			g.logger.Error("failed to unmarshal Gateway payload", zap.Error(err))
			continue
		}

		if payload.S != nil {
			g.sequence.Store(*payload.S)
		}

		switch payload.Op {
		case opHello:
			var hello HelloPayload
			if err := json.Unmarshal(payload.D, &hello); err != nil {
				return ready, fmt.Errorf("failed to unmarshal HELLO payload: %w", err)
			}
			interval := time.Duration(hello.HeartbeatInterval) * time.Millisecond
			g.logger.Debug("received HELLO from Gateway", zap.Duration("heartbeat_interval", interval))

			g.acked.Store(true)
			heartbeats.Add(1)
			go func() {
				defer heartbeats.Done()
				g.heartbeatLoop(sessCtx, cancel, interval)
			}()

			if err := g.sendIdentifyOrResume(); err != nil {
				return ready, err
			}

		case opHeartbeat:
			if err := g.sendHeartbeat(); err != nil {
				return ready, err
			}

		case opHeartbeatACK:
			g.acked.Store(true)

		case opReconnect:
			g.logger.Info("received reconnect request from Gateway")
			return ready, errReconnect

		case opInvalidSession:
			var resumable bool
			_ = json.Unmarshal(payload.D, &resumable)
			if !resumable {
				g.clearSession()
			}
			g.logger.Warn("received invalid session from Gateway", zap.Bool("resumable", resumable))
			return ready, errReconnect

		case opDispatch:
			if payload.T == nil {
				g.logger.Warn("dispatch event missing event type")
				continue
			}
			if g.handleDispatch(*payload.T, payload.D) {
				ready = true
				g.connected.Store(true)
			}

		default:
			g.logger.Debug("received unknown opcode", zap.Int("opcode", payload.Op))
		}
	}
}

// handleDispatch processes a dispatch event and reports whether it established the session
func (g *Gateway) handleDispatch(eventType string, data json.RawMessage) bool {
	switch eventType {
	case "READY":
		var ready ReadyPayload
		if err := json.Unmarshal(data, &ready); err != nil {
			g.logger.Error("failed to unmarshal READY payload", zap.Error(err))
			return false
		}

		g.sessionMu.Lock()
		g.sessionID = ready.SessionID
		g.resumeURL = ready.ResumeGatewayURL
		g.sessionMu.Unlock()

		fields := []zap.Field{zap.String("session_id", ready.SessionID)}
		if ready.User != nil {
			fields = append(fields, zap.String("bot_user", ready.User.Username))
		}
		g.logger.Info("Gateway session ready", fields...)
		return true

	case "RESUMED":
		g.logger.Info("Gateway session resumed")
		return true

	case "INTERACTION_CREATE":
		var interaction discord.Interaction
		if err := json.Unmarshal(data, &interaction); err != nil {
			g.logger.Error("failed to unmarshal INTERACTION_CREATE", zap.Error(err))
			return false
		}

		g.handlers.Add(1)
		go func() {
			defer g.handlers.Done()
			g.handler(g.handlerCtx, &interaction)
		}()
		return false

	default:
		// Ignore other events
		return false
	}
}

// heartbeatLoop sends periodic heartbeats and ends the session when the
// previous heartbeat was never acknowledged
func (g *Gateway) heartbeatLoop(ctx context.Context, endSession context.CancelFunc, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !g.acked.Load() {
				g.logger.Warn("heartbeat not acknowledged", zap.Error(errZombie))
				endSession()
				return
			}
			if err := g.sendHeartbeat(); err != nil {
				g.logger.Error("failed to send heartbeat", zap.Error(err))
				endSession()
				return
			}
		}
	}
}

func (g *Gateway) sendHeartbeat() error {
	g.acked.Store(false)

	var seq *int64
	if s := g.sequence.Load(); s > 0 {
		seq = &s
	}
	return g.send(opHeartbeat, seq)
}

func (g *Gateway) sendIdentifyOrResume() error {
	g.sessionMu.RLock()
	sessionID := g.sessionID
	g.sessionMu.RUnlock()

	if sessionID != "" {
		g.logger.Debug("sending RESUME to Gateway", zap.String("session_id", sessionID))
		return g.send(opResume, resumeData{
			Token:     g.token,
			SessionID: sessionID,
			Seq:       g.sequence.Load(),
		})
	}

	g.logger.Debug("sending IDENTIFY to Gateway")
	return g.send(opIdentify, identifyData{
		Token:   g.token,
		Intents: intentGuilds,
		Properties: identifyProperties{
			OS:      "linux",
			Browser: "phoenix",
			Device:  "phoenix",
		},
	})
}

// send writes one payload to the Gateway
func (g *Gateway) send(op int, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	g.connMu.Lock()
	defer g.connMu.Unlock()

	if g.conn == nil {
		return fmt.Errorf("connection is nil")
	}
	if err := g.conn.WriteJSON(Payload{Op: op, D: raw}); err != nil {
		return fmt.Errorf("failed to write payload: %w", err)
	}
	return nil
}

// connectURL returns the resume URL for a resumable session, otherwise the
// gateway URL from the REST API
func (g *Gateway) connectURL(ctx context.Context) (string, error) {
	g.sessionMu.RLock()
	base := g.gatewayURL
	if g.sessionID != "" && g.resumeURL != "" {
		base = g.resumeURL
	}
	g.sessionMu.RUnlock()

	if base == "" {
		gw, err := g.fetcher.GetGatewayBot(ctx)
		if err != nil {
			return "", err
		}
		base = gw.URL

		g.sessionMu.Lock()
		g.gatewayURL = base
		g.sessionMu.Unlock()
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid gateway URL %q: %w", base, err)
	}
	q := u.Query()
	q.Set("v", gatewayVersion)
	q.Set("encoding", gatewayEncoding)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// classifyReadError maps a read failure to a reconnect decision
func (g *Gateway) classifyReadError(err error) error {
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		return fmt.Errorf("failed to read Gateway message: %w", err)
	}

	switch closeErr.Code {
	case closeAuthenticationFailed, closeInvalidShard, closeShardingRequired,
		closeInvalidAPIVersion, closeInvalidIntents, closeDisallowedIntents:
		g.logger.Error("Gateway closed the session", zap.Int("close_code", closeErr.Code), zap.String("reason", closeErr.Text))
		return fmt.Errorf("%w: %d %s", ErrFatalClose, closeErr.Code, closeErr.Text)

	case closeInvalidSeq, closeSessionTimedOut:
		g.clearSession()
	}

	return fmt.Errorf("gateway closed with code %d: %w", closeErr.Code, err)
}

func (g *Gateway) clearSession() {
	g.sessionMu.Lock()
	g.sessionID = ""
	g.resumeURL = ""
	g.sessionMu.Unlock()
	g.sequence.Store(0)
}

func (g *Gateway) canResume() bool {
	g.sessionMu.RLock()
	defer g.sessionMu.RUnlock()
	return g.sessionID != ""
}

// IsConnected reports whether a session is currently established
func (g *Gateway) IsConnected() bool {
	return g.connected.Load()
}
