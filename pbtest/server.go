package pbtest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/pbkit/component"
	"github.com/kbukum/pbkit/logger"
)

// DefaultKeepAlive is the interval between keepalive comments on idle streams.
const DefaultKeepAlive = 30 * time.Second

// Submission is one subscription request the server received.
type Submission struct {
	ClientID      string
	Subscriptions []string
	CancelKey     string
	Authorization string
}

type failure struct {
	remaining int
	status    int
}

func (f *failure) take() (int, bool) {
	if f.remaining <= 0 {
		return 0, false
	}
	f.remaining--
	return f.status, true
}

// Server is an in-memory backend served over httptest.
type Server struct {
	name      string
	hub       *Hub
	engine    *gin.Engine
	http      *httptest.Server
	log       *logger.Logger
	keepAlive time.Duration
	tokenTTL  time.Duration
	signKey   []byte
	wg        sync.WaitGroup

	mu          sync.Mutex
	store       *store
	submissions []Submission
	connections int
	failConnect failure
	failSubmit  failure
}

// Option configures a Server.
type Option func(*Server)

// WithName sets the component name, for tests that run several backends.
// Defaults to "pbtest".
func WithName(name string) Option {
	return func(s *Server) { s.name = name }
}

// WithKeepAlive sets the keepalive interval for idle streams.
func WithKeepAlive(d time.Duration) Option {
	return func(s *Server) { s.keepAlive = d }
}

// WithLogger sets the server's logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Server) { s.log = l.WithComponent("pbtest") }
}

// WithTokenTTL sets the lifetime of issued auth tokens.
func WithTokenTTL(d time.Duration) Option {
	return func(s *Server) { s.tokenTTL = d }
}

var (
	_ component.Component   = (*Server)(nil)
	_ component.Describable = (*Server)(nil)
)

// New builds a Server. Call Start before use.
func New(opts ...Option) *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		name:      "pbtest",
		log:       logger.GetGlobalLogger().WithComponent("pbtest"),
		keepAlive: DefaultKeepAlive,
		tokenTTL:  time.Hour,
		signKey:   []byte(uuid.NewString()),
		store:     newStore(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = newHub(s.log)
	s.engine = gin.New()
	s.engine.Use(gin.Recovery())
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.engine.Group("/api")
	api.GET("/realtime", s.handleStream)
	api.POST("/realtime", s.handleSubmit)

	api.POST("/collections", s.handleCreateCollection)
	api.GET("/collections/:collection/records", s.handleList)
	api.POST("/collections/:collection/records", s.handleCreate)
	api.GET("/collections/:collection/records/:id", s.handleView)
	api.PATCH("/collections/:collection/records/:id", s.handleUpdate)
	api.DELETE("/collections/:collection/records/:id", s.handleDelete)
	api.POST("/collections/:collection/auth-with-password", s.handleAuthWithPassword)
	api.POST("/collections/:collection/auth-refresh", s.handleAuthRefresh)
}

// Name implements component.Component.
func (s *Server) Name() string { return s.name }

// Start serves the backend on a loopback listener.
func (s *Server) Start(_ context.Context) error {
	if s.http != nil {
		return fmt.Errorf("pbtest: already started")
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.hub.run()
	}()
	s.http = httptest.NewServer(s.engine)
	s.log.Debug("Server started", logger.Fields("url", s.http.URL))
	return nil
}

// Stop ends all streams and closes the listener.
func (s *Server) Stop(_ context.Context) error {
	if s.http == nil {
		return nil
	}
	s.hub.stop()
	s.wg.Wait()
	s.http.CloseClientConnections()
	s.http.Close()
	return nil
}

// Health implements component.Component.
func (s *Server) Health(_ context.Context) component.Health {
	status := component.StatusHealthy
	if s.http == nil {
		status = component.StatusUnhealthy
	}
	return component.Health{
		Name:    s.Name(),
		Status:  status,
		Message: fmt.Sprintf("%d streams connected", s.hub.clientCount()),
	}
}

// Describe implements component.Describable.
func (s *Server) Describe() component.Description {
	return component.Description{Name: "Test backend", Type: "server", Details: s.URL()}
}

// URL is the base URL clients should use. Empty before Start.
func (s *Server) URL() string {
	if s.http == nil {
		return ""
	}
	return s.http.URL
}

// Publish sends an event to every stream subscribed to topic.
func (s *Server) Publish(topic, action string, record any) error {
	data, err := json.Marshal(map[string]any{"action": action, "record": record})
	if err != nil {
		return fmt.Errorf("pbtest: encode event: %w", err)
	}
	s.hub.publish(topic, data)
	return nil
}

// DropClients closes every open stream and returns how many were closed.
func (s *Server) DropClients() int {
	n := s.hub.closeAll()
	s.log.Debug("Streams dropped", logger.Fields("count", n))
	return n
}

// FailNextConnects makes the next n stream requests fail with status.
func (s *Server) FailNextConnects(n, status int) {
	s.mu.Lock()
	s.failConnect = failure{remaining: n, status: status}
	s.mu.Unlock()
}

// FailNextSubmissions makes the next n subscription requests fail with status.
func (s *Server) FailNextSubmissions(n, status int) {
	s.mu.Lock()
	s.failSubmit = failure{remaining: n, status: status}
	s.mu.Unlock()
}

// Submissions returns every subscription request received so far.
func (s *Server) Submissions() []Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.submissions)
}

// Connections counts accepted streams.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connections
}

// ClientIDs lists the ids of open streams.
func (s *Server) ClientIDs() []string { return s.hub.clientIDs() }

// Subscriptions lists the topics clientID is subscribed to, sorted.
func (s *Server) Subscriptions(clientID string) []string { return s.hub.subscriptions(clientID) }

func (s *Server) handleStream(c *gin.Context) {
	s.mu.Lock()
	status, fail := s.failConnect.take()
	if !fail {
		s.connections++
	}
	s.mu.Unlock()

	if fail {
		writeError(c.Writer, status, http.StatusText(status))
		return
	}
	s.serveStream(c.Writer, c.Request)
}

type submitRequest struct {
	ClientID      string   `json:"clientId"`
	Subscriptions []string `json:"subscriptions"`
}

func (s *Server) handleSubmit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c.Writer, http.StatusBadRequest, "Failed to load the submitted data.")
		return
	}

	s.mu.Lock()
	s.submissions = append(s.submissions, Submission{
		ClientID:      req.ClientID,
		Subscriptions: slices.Clone(req.Subscriptions),
		CancelKey:     c.Query("$cancelKey"),
		Authorization: c.GetHeader("Authorization"),
	})
	status, fail := s.failSubmit.take()
	s.mu.Unlock()

	if fail {
		writeError(c.Writer, status, http.StatusText(status))
		return
	}
	if !s.hub.setSubscriptions(req.ClientID, req.Subscriptions) {
		writeError(c.Writer, http.StatusNotFound, "Missing or invalid client id.")
		return
	}
	s.log.Debug("Subscriptions set", logger.Fields(
		logger.FieldClientID, req.ClientID,
		logger.FieldTopics, req.Subscriptions,
	))
	c.Status(http.StatusNoContent)
}

// writeError writes the backend's JSON error envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeFieldError(w, status, message, nil)
}

func writeFieldError(w http.ResponseWriter, status int, message string, fields map[string]fieldProblem) {
	if fields == nil {
		fields = map[string]fieldProblem{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":    status,
		"message": message,
		"data":    fields,
	})
}

type fieldProblem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
