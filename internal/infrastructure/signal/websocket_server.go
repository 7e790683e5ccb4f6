package signal

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"sportshub/internal/core/domain"
	"sportshub/internal/core/ports"
	"sportshub/internal/core/realtime"
	"sportshub/pkg/config"
	"sportshub/pkg/ratelimit"
	"sportshub/pkg/tracing"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const presenceTimeout = 5 * time.Second

type Config struct {
	PingInterval         time.Duration
	PongTimeout          time.Duration
	WriteTimeout         time.Duration
	SendBuffer           int
	MaxMessageBytes      int64
	MessagesPerSecond    float64 // 0 disables the per-connection limit
	MessageBurst         int
	ConnectionsPerMinute int // per client IP, 0 = unlimited
	MaxConnections       int // 0 = unlimited
	AllowedOrigins       []string
}

// ConfigFrom maps the application config onto the transport settings.
func ConfigFrom(cfg *config.Config) Config {
	out := Config{
		PingInterval:    cfg.Signal.PingInterval,
		PongTimeout:     cfg.Signal.PongTimeout,
		WriteTimeout:    cfg.Signal.WriteTimeout,
		SendBuffer:      cfg.Signal.SendBuffer,
		MaxMessageBytes: cfg.RateLimiting.WebSocket.MaxMessageSizeBytes,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
	}
	if cfg.RateLimiting.Enabled {
		ws := cfg.RateLimiting.WebSocket
		out.MessagesPerSecond = ws.MessagesPerSecond
		out.MessageBurst = ws.Burst
		out.ConnectionsPerMinute = ws.ConnectionsPerMinute
		out.MaxConnections = ws.MaxConcurrent
	}
	return out
}

// Authenticator resolves a bearer token to a user. It is optional; without
// it every connection is anonymous.
type Authenticator func(token string) (domain.UserID, error)

// Metrics is what the transport reports beyond the core's own metrics.
type Metrics interface {
	ConnectionOpened()
	ConnectionClosed(lifetime time.Duration)
	MessageReceived(event string)
	// Rejected counts refused connections and dropped inbound messages.
	Rejected(reason string)
}

type nopMetrics struct{}

func (nopMetrics) ConnectionOpened() {}
func (nopMetrics) ConnectionClosed(time.Duration) {}
func (nopMetrics) MessageReceived(string) {}
func (nopMetrics) Rejected(string) {}

type ErrorPayload struct {
	Message string `json:"message"`
}

type ConnectedPayload struct {
	ConnectionID domain.ConnectionID `json:"connectionId"`
}

// WebSocketServer is the realtime transport. It owns the sockets, delivers
// frames for the broadcaster and relay, and feeds them validated inbound
// messages.
type WebSocketServer struct {
	cfg      Config
	upgrader websocket.Upgrader
	logger   *zap.SugaredLogger
	metrics  Metrics

	broadcaster *realtime.Broadcaster
	relay       *realtime.Relay
	presence    ports.ViewerPresence
	auth        Authenticator
	connLimiter *ratelimit.Keyed

	mu          sync.RWMutex
	connections map[domain.ConnectionID]*connection
	draining    bool
	wg          sync.WaitGroup
}

func NewWebSocketServer(cfg Config, logger *zap.SugaredLogger) *WebSocketServer {
	s := &WebSocketServer{
		cfg:         cfg,
		logger:      logger.With("component", "signal"),
		metrics:     nopMetrics{},
		connections: make(map[domain.ConnectionID]*connection),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	if cfg.ConnectionsPerMinute > 0 {
		s.connLimiter = ratelimit.PerMinute(cfg.ConnectionsPerMinute)
	}
	return s
}

// Attach wires the core components. It must be called before serving; both
// were constructed with this server as their transport.
func (s *WebSocketServer) Attach(b *realtime.Broadcaster, r *realtime.Relay) {
	s.broadcaster = b
	s.relay = r
}

func (s *WebSocketServer) SetPresence(p ports.ViewerPresence) { s.presence = p }

func (s *WebSocketServer) SetAuthenticator(a Authenticator) { s.auth = a }

func (s *WebSocketServer) SetMetrics(m Metrics) {
	if m != nil {
		s.metrics = m
	}
}

// Send implements ports.Transport.
func (s *WebSocketServer) Send(id domain.ConnectionID, msg *domain.OutboundMessage) error {
	s.mu.RLock()
	c, ok := s.connections[id]
	s.mu.RUnlock()
	if !ok {
		return domain.ErrConnectionNotFound
	}

	frame, err := msg.Bytes()
	if err != nil {
		return err
	}
	if err := c.enqueue(frame); err != nil {
		if errors.Is(err, domain.ErrSendBufferFull) {
			s.logger.Warnw("Send buffer full, closing slow connection", "connection_id", id)
		}
		return err
	}
	return nil
}

func (s *WebSocketServer) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}

func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.broadcaster == nil || s.relay == nil {
		http.Error(w, "realtime not ready", http.StatusServiceUnavailable)
		return
	}
	if s.atCapacity() {
		s.metrics.Rejected("capacity")
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}
	if s.connLimiter != nil && !s.connLimiter.Allow(ratelimit.ClientIP(r)) {
		s.metrics.Rejected("connect_rate")
		http.Error(w, "connection rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	userID, err := s.authenticate(r)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("WebSocket upgrade failed", "error", err)
		return
	}

	c := newConnection(domain.ConnectionID(uuid.NewString()), userID, ws, s.cfg)
	if !s.register(c) {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(s.cfg.WriteTimeout))
		_ = ws.Close()
		return
	}
	defer s.wg.Done()

	s.broadcaster.Connect(c.id)
	s.metrics.ConnectionOpened()
	s.logger.Infow("Client connected", "connection_id", c.id, "user_id", c.userID, "remote", r.RemoteAddr)

	go c.writePump(s.cfg)
	s.sendEvent(c, EventConnected, ConnectedPayload{ConnectionID: c.id})

	s.readPump(c)
	s.cleanup(c)
}

func (s *WebSocketServer) atCapacity() bool {
	if s.cfg.MaxConnections <= 0 {
		return false
	}
	return s.ConnectionCount() >= s.cfg.MaxConnections
}

func (s *WebSocketServer) authenticate(r *http.Request) (domain.UserID, error) {
	if s.auth == nil {
		return "", nil
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		return "", nil
	}
	return s.auth(token)
}

func (s *WebSocketServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

func (s *WebSocketServer) register(c *connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draining {
		return false
	}
	s.connections[c.id] = c
	s.wg.Add(1)
	return true
}

func (s *WebSocketServer) readPump(c *connection) {
	if s.cfg.MaxMessageBytes > 0 {
		c.ws.SetReadLimit(s.cfg.MaxMessageBytes)
	}
	_ = c.ws.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Infow("WebSocket read error", "connection_id", c.id, "error", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))

		if !c.allow() {
			s.metrics.Rejected("rate_limited")
			s.sendError(c, "rate limit exceeded")
			continue
		}

		msg, err := DecodeClientMessage(raw)
		if err != nil {
			s.metrics.Rejected("invalid")
			s.sendError(c, err.Error())
			continue
		}

		s.metrics.MessageReceived(msg.Event())
		s.dispatch(c, msg)
	}
}

func (s *WebSocketServer) dispatch(c *connection, msg ClientMessage) {
	ctx, span := tracing.TraceWebSocketMessage(context.Background(), msg.Event(), string(c.id))
	defer span.End()

	switch m := msg.(type) {
	case SubscribeMessage:
		s.broadcaster.Subscribe(c.id, m.Topic)
		tracing.AddSpanAttributes(ctx, tracing.TopicKey.String(m.Topic.String()))
	case UnsubscribeMessage:
		s.broadcaster.Unsubscribe(c.id, m.Topic)
		tracing.AddSpanAttributes(ctx, tracing.TopicKey.String(m.Topic.String()))
	case JoinMessage:
		userID := c.userID
		if userID == "" {
			userID = m.UserID
		}
		s.relay.Join(c.id, m.SessionID, userID)
		tracing.AddSpanAttributes(ctx,
			tracing.SessionIDKey.String(string(m.SessionID)),
			tracing.UserIDKey.String(string(userID)),
		)
	case LeaveMessage:
		s.relay.Leave(c.id, m.SessionID)
	case OfferMessage:
		s.relay.RelayOffer(c.id, m.SessionID, m.ViewerID, m.Offer)
	case AnswerMessage:
		s.relay.RelayAnswer(c.id, m.SessionID, m.HostID, m.Answer)
	case ICECandidateMessage:
		s.relay.RelayICECandidate(c.id, m.SessionID, m.TargetID, m.Candidate)
	}
}

// cleanup runs once per connection after its read loop ends: relay first,
// then topics, then the persisted viewer record for authenticated users.
func (s *WebSocketServer) cleanup(c *connection) {
	c.close()

	sessionID, wasInRoom := s.relay.Disconnect(c.id)
	s.broadcaster.Disconnect(c.id)

	s.mu.Lock()
	delete(s.connections, c.id)
	s.mu.Unlock()

	if wasInRoom && c.userID != "" && s.presence != nil && !s.userInRoom(c.userID, sessionID) {
		ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
		if err := s.presence.ViewerDisconnected(ctx, sessionID, c.userID); err != nil {
			s.logger.Warnw("Failed to release viewer on disconnect",
				"connection_id", c.id, "session_id", sessionID, "user_id", c.userID, "error", err)
		}
		cancel()
	}

	s.metrics.ConnectionClosed(time.Since(c.opened))
	s.logger.Infow("Client disconnected", "connection_id", c.id, "session_id", sessionID)
}

// userInRoom reports whether another open connection of the user is still in
// the session room.
func (s *WebSocketServer) userInRoom(userID domain.UserID, sessionID domain.SessionID) bool {
	s.mu.RLock()
	var same []domain.ConnectionID
	for id, c := range s.connections {
		if c.userID == userID {
			same = append(same, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range same {
		if joined, ok := s.relay.SessionOf(id); ok && joined == sessionID {
			return true
		}
	}
	return false
}

func (s *WebSocketServer) sendEvent(c *connection, event string, data interface{}) {
	frame, err := domain.NewOutboundMessage(event, data).Bytes()
	if err != nil {
		return
	}
	_ = c.enqueue(frame)
}

func (s *WebSocketServer) sendError(c *connection, message string) {
	s.sendEvent(c, EventError, ErrorPayload{Message: message})
}

// Shutdown refuses new connections, closes the open ones and waits for
// their cleanup to finish or ctx to end.
func (s *WebSocketServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.draining = true
	for _, c := range s.connections {
		c.close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats is a point-in-time view of the realtime layer.
type Stats struct {
	Connections int `json:"connections"`
	Topics      int `json:"topics"`
	Rooms       int `json:"rooms"`
}

func (s *WebSocketServer) Stats() Stats {
	stats := Stats{Connections: s.ConnectionCount()}
	if s.broadcaster != nil {
		stats.Topics = s.broadcaster.TopicCount()
	}
	if s.relay != nil {
		stats.Rooms = s.relay.RoomCount()
	}
	return stats
}
