package ws

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/preview/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/types"
	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 16
)

// Message types
const (
	TypeFilesChanged = "files_changed"
	TypeSignal       = "signal"
	TypeTimeout      = "timeout"
	TypePing         = "ping"
	TypePong         = "pong"
	TypeError        = "error"
	TypeConnected    = "connected"
)

// Message is the envelope exchanged with host pages
type Message struct {
	Type      string                 `json:"type"`
	ProjectID string                 `json:"project_id,omitempty"`
	RenderID  string                 `json:"render_id,omitempty"`
	Signal    *types.ExecutionSignal `json:"signal,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// Report is a render result relayed by a browser
type Report struct {
	ProjectID string
	RenderID  string
	Signal    *types.ExecutionSignal // nil when the host page timed out
}

// Config configures the hub
type Config struct {
	// AllowedOrigins restricts upgrades; empty allows any origin
	AllowedOrigins []string
}

type client struct {
	id      id.ClientID
	project string
	conn    *websocket.Conn
	send    chan []byte
	once    sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub tracks host page connections per project. It pushes live-reload
// notifications and relays render results reported by the pages.
type Hub struct {
	upgrader websocket.Upgrader
	metrics  *monitoring.Metrics
	logger   *zap.Logger

	mu       sync.RWMutex
	rooms    map[string]map[*client]struct{}
	onReport func(Report)
	closed   bool
}

// NewHub creates a hub. metrics may be nil.
func NewHub(cfg Config, metrics *monitoring.Metrics, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		metrics: metrics,
		logger:  logger,
		rooms:   make(map[string]map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return h
}

// OnReport registers the receiver of relayed render results
func (h *Hub) OnReport(fn func(Report)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onReport = fn
}

// Handle upgrades GET /ws/projects/:id
func (h *Hub) Handle(c *gin.Context) {
	projectID := c.Param("id")
	if err := utils.ValidateID(projectID, "project_id", true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{
		id:      id.NewClientID(),
		project: projectID,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
	}
	if !h.register(cl) {
		conn.Close()
		return
	}

	go h.writePump(cl)
	h.enqueue(cl, Message{Type: TypeConnected, ProjectID: projectID})
	h.readPump(cl)
}

// FilesChanged tells every page of a project to re-render
func (h *Hub) FilesChanged(projectID string) int {
	return h.Broadcast(projectID, Message{Type: TypeFilesChanged, ProjectID: projectID}, nil)
}

// Broadcast sends msg to every client of projectID except skip
func (h *Hub) Broadcast(projectID string, msg Message, skip *client) int {
	data, err := encode(msg)
	if err != nil {
		h.logger.Error("Failed to encode message", zap.Error(err))
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for cl := range h.rooms[projectID] {
		if cl == skip {
			continue
		}
		select {
		case cl.send <- data:
			sent++
			h.recordMessage("out", msg.Type)
		default:
			h.logger.Warn("Dropping message for slow client",
				zap.String("project_id", projectID),
				zap.String("client_id", cl.id.String()))
		}
	}
	return sent
}

// Clients returns the number of connections for a project
func (h *Hub) Clients(projectID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[projectID])
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, room := range h.rooms {
		for cl := range room {
			cl.close()
			if h.metrics != nil {
				h.metrics.DecWSConnections()
			}
		}
	}
	h.rooms = make(map[string]map[*client]struct{})
}

func (h *Hub) register(cl *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	room, ok := h.rooms[cl.project]
	if !ok {
		room = make(map[*client]struct{})
		h.rooms[cl.project] = room
	}
	room[cl] = struct{}{}
	if h.metrics != nil {
		h.metrics.IncWSConnections()
	}
	h.logger.Debug("Client connected",
		zap.String("project_id", cl.project),
		zap.String("client_id", cl.id.String()))
	return true
}

func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[cl.project]
	if _, ok := room[cl]; !ok {
		return
	}
	delete(room, cl)
	if len(room) == 0 {
		delete(h.rooms, cl.project)
	}
	cl.close()
	if h.metrics != nil {
		h.metrics.DecWSConnections()
	}
}

func (h *Hub) readPump(cl *client) {
	defer func() {
		h.unregister(cl)
		cl.conn.Close()
	}()

	cl.conn.SetReadLimit(maxMessageSize)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}

		var msg Message
		if err := sonic.Unmarshal(data, &msg); err != nil {
			h.enqueue(cl, Message{Type: TypeError, Message: "malformed message"})
			continue
		}
		h.recordMessage("in", msg.Type)
		h.handle(cl, msg)
	}
}

func (h *Hub) handle(cl *client, msg Message) {
	switch msg.Type {
	case TypePing:
		h.enqueue(cl, Message{Type: TypePong})
	case TypeSignal:
		if msg.Signal == nil || (msg.Signal.Kind != types.SignalSuccess && msg.Signal.Kind != types.SignalError) {
			h.enqueue(cl, Message{Type: TypeError, Message: "signal must have kind success or error"})
			return
		}
		h.report(cl, Report{ProjectID: cl.project, RenderID: msg.RenderID, Signal: msg.Signal})
		h.Broadcast(cl.project, Message{
			Type:      TypeSignal,
			ProjectID: cl.project,
			RenderID:  msg.RenderID,
			Signal:    msg.Signal,
		}, cl)
	case TypeTimeout:
		h.report(cl, Report{ProjectID: cl.project, RenderID: msg.RenderID})
	default:
		h.enqueue(cl, Message{Type: TypeError, Message: "unknown message type"})
	}
}

func (h *Hub) report(cl *client, r Report) {
	h.mu.RLock()
	fn := h.onReport
	h.mu.RUnlock()

	fields := []zap.Field{
		zap.String("project_id", r.ProjectID),
		zap.String("render_id", r.RenderID),
		zap.String("client_id", cl.id.String()),
	}
	if r.Signal != nil {
		fields = append(fields, zap.String("kind", string(r.Signal.Kind)), zap.String("message", r.Signal.Message))
		h.logger.Info("Render reported", fields...)
	} else {
		h.logger.Info("Render timed out in browser", fields...)
	}
	if fn != nil {
		fn(r)
	}
}

func (h *Hub) enqueue(cl *client, msg Message) {
	data, err := encode(msg)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.rooms[cl.project][cl]; !ok {
		return
	}
	select {
	case cl.send <- data:
		h.recordMessage("out", msg.Type)
	default:
	}
}

func (h *Hub) writePump(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()

	for {
		select {
		case data, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) recordMessage(direction, msgType string) {
	if h.metrics != nil {
		h.metrics.RecordWSMessage(direction, msgType)
	}
}

func encode(msg Message) ([]byte, error) {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().Unix()
	}
	return sonic.Marshal(msg)
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set[origin]; ok {
			return true
		}
		// Host pages are served by this server
		return origin == "http://"+r.Host || origin == "https://"+r.Host
	}
}
