package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pagecraft-dev/pagecraft/internal/appdom"
	"github.com/pagecraft-dev/pagecraft/internal/canvas"
	"github.com/pagecraft-dev/pagecraft/internal/compiler/cache"
	"github.com/pagecraft-dev/pagecraft/internal/datasource"
	"github.com/pagecraft-dev/pagecraft/internal/runtime"
	"github.com/pagecraft-dev/pagecraft/internal/store"
	"github.com/pagecraft-dev/pagecraft/internal/viewstate"
)

// Bridge message kinds.
const (
	KindUpdateDom = "updateDom"
	KindDispatch  = "dispatch"
	KindViewState = "viewState"
	KindError     = "error"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 8 << 20
)

// Message is one frame on the bridge websocket
type Message struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outMessage struct {
	Kind    string `json:"kind"`
	Payload any    `json:"payload"`
}

// ErrorPayload is the payload of an error message
type ErrorPayload struct {
	Message string `json:"message"`
}

// DispatchPayload is the payload of a dispatch message
type DispatchPayload struct {
	NodeID  string `json:"nodeId"`
	Prop    string `json:"prop"`
	Payload any    `json:"payload"`
}

// HubConfig holds what canvas sessions are built from
type HubConfig struct {
	Docs        datasource.DocumentSource
	Compiler    *cache.Coordinator
	DataSources *datasource.Executor
	HostOptions []runtime.Option
	// AllowedOrigins may open the bridge besides loopback and same-origin
	// editors
	AllowedOrigins []string
	Logger         *zap.Logger
}

// BridgeHub runs one canvas session per websocket connection
type BridgeHub struct {
	config   HubConfig
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*bridgeClient]bool
	closed  bool
}

type bridgeClient struct {
	appID   string
	conn    *websocket.Conn
	session *canvas.Session
	cancel  context.CancelFunc
	logger  *zap.Logger

	writeMu sync.Mutex
}

// NewBridgeHub creates a hub
func NewBridgeHub(config HubConfig) *BridgeHub {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &BridgeHub{
		config:  config,
		logger:  logger,
		clients: make(map[*bridgeClient]bool),
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin:     h.checkOrigin,
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
	return h
}

// checkOrigin admits same-origin requests, loopback editors and the
// explicitly configured origins. A "*" entry does not open the bridge.
func (h *BridgeHub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, allowed := range h.config.AllowedOrigins {
		if allowed != "*" && isOriginAllowed(origin, []string{allowed}) {
			return true
		}
	}
	return false
}

// ServeHTTP upgrades /bridge/{appId}/{pageId} and runs a canvas session for
// the connection. The stored document of ?version= (default preview) is
// loaded when it exists; the editor replaces it with updateDom messages.
func (h *BridgeHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	appID, pageID := chi.URLParam(r, "appId"), chi.URLParam(r, "pageId")
	version := r.URL.Query().Get("version")
	if version == "" {
		version = store.Preview
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("bridge upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &bridgeClient{
		appID:  appID,
		conn:   conn,
		cancel: cancel,
		logger: h.logger.With(zap.String("app", appID), zap.String("page", pageID)),
	}
	c.session = canvas.NewSession(canvas.Config{
		AppID:       appID,
		PageID:      appdom.NodeID(pageID),
		Version:     version,
		Compiler:    h.config.Compiler,
		DataSources: h.config.DataSources,
		HostOptions: h.config.HostOptions,
		Logger:      h.logger,
		Publish:     func(vs *viewstate.PageViewState) { c.send(KindViewState, vs) },
		OnError:     func(err error) { c.send(KindError, ErrorPayload{Message: err.Error()}) },
	})

	if !h.register(c) {
		cancel()
		conn.Close()
		return
	}
	defer h.unregister(c)

	c.session.Bridge().Install()
	if h.config.Docs != nil {
		doc, err := h.config.Docs.Load(ctx, appID, version)
		switch {
		case err == nil:
			if err := c.session.Load(ctx, doc); err != nil {
				c.send(KindError, ErrorPayload{Message: err.Error()})
			}
		case !errors.Is(err, store.ErrNotFound):
			c.send(KindError, ErrorPayload{Message: err.Error()})
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.session.Run(ctx)
	}()
	go c.pingLoop(ctx)

	c.readLoop()

	cancel()
	<-done
	c.session.Close()
	conn.Close()
}

func (h *BridgeHub) register(c *bridgeClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = true
	h.logger.Debug("bridge client connected", zap.Int("total", len(h.clients)))
	return true
}

func (h *BridgeHub) unregister(c *bridgeClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	h.logger.Debug("bridge client disconnected", zap.Int("total", len(h.clients)))
}

// Count returns the number of connected editors
func (h *BridgeHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// NotifyDocument sends doc to every session of appID and reports how many
// accepted it.
func (h *BridgeHub) NotifyDocument(appID string, doc *appdom.Document) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.clients {
		if c.appID == appID && c.session.Bridge().UpdateDom(doc) {
			n++
		}
	}
	return n
}

// Close disconnects every editor and refuses new connections
func (h *BridgeHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for c := range h.clients {
		c.cancel()
		c.conn.Close()
	}
}

func (c *bridgeClient) readLoop() {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("bridge read failed", zap.Error(err))
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if err := c.handle(data); err != nil {
			c.send(KindError, ErrorPayload{Message: err.Error()})
		}
	}
}

func (c *bridgeClient) handle(data []byte) error {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return errors.New("malformed bridge message: " + err.Error())
	}
	bridge := c.session.Bridge()
	switch msg.Kind {
	case KindUpdateDom:
		doc, err := appdom.Parse(msg.Payload)
		if err != nil {
			return err
		}
		if !bridge.UpdateDom(doc) {
			return errors.New("canvas is not running")
		}
	case KindDispatch:
		var p DispatchPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return errors.New("malformed dispatch payload: " + err.Error())
		}
		if !bridge.Dispatch(p.NodeID, p.Prop, p.Payload) {
			return errors.New("canvas is not running")
		}
	default:
		return errors.New("unknown message kind " + msg.Kind)
	}
	return nil
}

func (c *bridgeClient) send(kind string, payload any) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(outMessage{Kind: kind, Payload: payload}); err != nil {
		c.logger.Debug("bridge write failed", zap.String("kind", kind), zap.Error(err))
	}
}

func (c *bridgeClient) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
