package handler

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tekkistudio/tekki-chat/internal/domain"
	apperrors "github.com/tekkistudio/tekki-chat/internal/errors"
	"github.com/tekkistudio/tekki-chat/internal/logging"
	"github.com/tekkistudio/tekki-chat/internal/metrics"
	"github.com/tekkistudio/tekki-chat/internal/middleware"
	"github.com/tekkistudio/tekki-chat/internal/service"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsMaxFrameSize = 16 << 10
)

// Frame types.
const (
	frameMessage = "message"
	frameAction  = "action"
	frameTyping  = "typing"
	frameError   = "error"
	frameReady   = "ready"
)

// inboundFrame is a client frame. Message frames use Content; action
// frames use the chip fields.
type inboundFrame struct {
	Type     string         `json:"type"`
	Content  string         `json:"content,omitempty"`
	Action   string         `json:"action,omitempty"`
	Business string         `json:"business,omitempty"`
	Value    string         `json:"value,omitempty"`
	Label    string         `json:"label,omitempty"`
	Context  PageContextDTO `json:"context"`
}

type outboundFrame struct {
	Type    string                 `json:"type"`
	Session string                 `json:"session,omitempty"`
	Message *domain.Message        `json:"message,omitempty"`
	Error   *apperrors.ErrorDetail `json:"error,omitempty"`
}

// TurnStarter starts chat turns and waits on their completions separately,
// so inputs are stored in arrival order while a slow completion is pending.
type TurnStarter interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
	StartMessage(ctx context.Context, id string, in service.MessageInput) (*service.PendingTurn, error)
	StartAction(ctx context.Context, id string, in service.ActionInput) (*service.PendingTurn, error)
	Await(ctx context.Context, p *service.PendingTurn) (*service.TurnResult, error)
}

// WebsocketHandler serves chat turns over a websocket.
type WebsocketHandler struct {
	chat     TurnStarter
	upgrader websocket.Upgrader
	logger   *zap.Logger
	metrics  *metrics.Metrics

	mu       sync.Mutex
	conns    map[*wsConn]struct{}
	draining bool
	active   sync.WaitGroup
}

// NewWebsocketHandler creates a WebsocketHandler. Browser origins outside
// allowedOrigins are refused at upgrade.
func NewWebsocketHandler(chat TurnStarter, allowedOrigins []string, logger *zap.Logger, m *metrics.Metrics) *WebsocketHandler {
	if logger == nil {
		panic("logger is required")
	}
	return &WebsocketHandler{
		chat:  chat,
		conns: make(map[*wsConn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return middleware.AllowsOrigin(allowedOrigins, r.Header.Get("Origin"))
			},
		},
		logger:  logger.Named("websocket"),
		metrics: m,
	}
}

// RegisterRoutes registers the websocket route on r.
func (h *WebsocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/chat/ws", h.HandleWebsocket)
}

// wsConn serializes writes; the ping loop and turn goroutines share it.
type wsConn struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	closing atomic.Bool
}

// extendRead pushes the read deadline back unless the server asked the
// client to go away.
func (c *wsConn) extendRead() error {
	if c.closing.Load() {
		return nil
	}
	return c.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
}

func (c *wsConn) send(frame outboundFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(frame)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
}

// goAway asks the client to close and unblocks the read loop shortly after.
func (c *wsConn) goAway() {
	c.closing.Store(true)
	c.mu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteTimeout))
	c.mu.Unlock()
	_ = c.conn.SetReadDeadline(time.Now().Add(time.Second))
}

// Open returns the number of open connections.
func (h *WebsocketHandler) Open() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Drain refuses new connections, asks open ones to close and waits until
// their handlers, including pending turns, have returned or ctx expires.
func (h *WebsocketHandler) Drain(ctx context.Context) error {
	h.mu.Lock()
	h.draining = true
	conns := make([]*wsConn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.goAway()
	}

	done := make(chan struct{})
	go func() {
		h.active.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *WebsocketHandler) track(c *wsConn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draining {
		return false
	}
	h.conns[c] = struct{}{}
	h.active.Add(1)
	return true
}

func (h *WebsocketHandler) untrack(c *wsConn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
	h.active.Done()
}

// HandleWebsocket upgrades GET /api/chat/ws?session=<id>. The session must
// exist before the upgrade.
func (h *WebsocketHandler) HandleWebsocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		respondError(w, r, h.logger, apperrors.InvalidInput("session is required"))
		return
	}
	if _, err := h.chat.Get(r.Context(), sessionID); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	h.mu.Lock()
	draining := h.draining
	h.mu.Unlock()
	if draining {
		respondError(w, r, h.logger, apperrors.ErrShuttingDown)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ws := &wsConn{conn: conn}
	if !h.track(ws) {
		return
	}
	defer h.untrack(ws)

	h.metrics.WebsocketOpened()
	defer h.metrics.WebsocketClosed()

	log := logging.ForSession(middleware.LoggerWithCorrelation(r.Context(), h.logger), sessionID)
	log.Debug("websocket connected")

	// The request context ends with the handler; turns started from this
	// connection stop when it does.
	ctx, cancel := context.WithCancel(r.Context())
	var turns sync.WaitGroup
	defer func() {
		cancel()
		turns.Wait()
	}()

	conn.SetReadLimit(wsMaxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return ws.extendRead()
	})

	go h.pingLoop(ctx, ws)

	if err := ws.send(outboundFrame{Type: frameReady, Session: sessionID}); err != nil {
		return
	}

	userAgent := r.UserAgent()
	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("websocket read failed", zap.Error(err))
			}
			return
		}
		if ws.closing.Load() {
			return
		}
		_ = ws.extendRead()

		// Turns start here, in arrival order. Only the completion wait runs
		// concurrently so a newer frame can supersede a slow one.
		pending, err := h.startTurn(ctx, ws, sessionID, userAgent, frame)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				h.sendError(ws, err, log)
			}
			continue
		}

		turns.Add(1)
		go func(p *service.PendingTurn) {
			defer turns.Done()
			h.awaitTurn(ctx, ws, p, log)
		}(pending)
	}
}

func (h *WebsocketHandler) startTurn(ctx context.Context, ws *wsConn, sessionID, userAgent string, frame inboundFrame) (*service.PendingTurn, error) {
	switch frame.Type {
	case frameMessage:
		_ = ws.send(outboundFrame{Type: frameTyping})
		return h.chat.StartMessage(ctx, sessionID, service.MessageInput{
			Content:   frame.Content,
			Page:      frame.Context.toDomain(),
			UserAgent: userAgent,
		})
	case frameAction:
		_ = ws.send(outboundFrame{Type: frameTyping})
		req := ActionRequest{
			Action:   frame.Action,
			Business: frame.Business,
			Value:    frame.Value,
			Label:    frame.Label,
			Context:  frame.Context,
		}
		return h.chat.StartAction(ctx, sessionID, req.toInput(userAgent))
	default:
		return nil, apperrors.InvalidInput("unknown frame type")
	}
}

func (h *WebsocketHandler) awaitTurn(ctx context.Context, ws *wsConn, p *service.PendingTurn, log *zap.Logger) {
	result, err := h.chat.Await(ctx, p)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		h.sendError(ws, err, log)
		return
	}
	if result.Stale {
		return
	}
	for i := range result.Replies {
		if err := ws.send(outboundFrame{Type: frameMessage, Message: &result.Replies[i]}); err != nil {
			log.Debug("websocket write failed", zap.Error(err))
			return
		}
	}
}

func (h *WebsocketHandler) sendError(ws *wsConn, err error, log *zap.Logger) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		appErr = apperrors.InternalError("internal server error", err)
	}
	if appErr.HTTPStatus() >= http.StatusInternalServerError {
		log.Error("websocket turn failed", zap.String("code", string(appErr.Code)), zap.Error(err))
	}
	detail := appErr.ToResponse().Error
	_ = ws.send(outboundFrame{Type: frameError, Error: &detail})
}

func (h *WebsocketHandler) pingLoop(ctx context.Context, ws *wsConn) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ws.ping(); err != nil {
				return
			}
		}
	}
}
