package a2a

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hupe1980/predator/core"
	"github.com/hupe1980/predator/logging"
)

// Executor runs one turn of a local task. *runner.Runner satisfies it.
type Executor interface {
	RunSync(ctx context.Context, taskID string, msg core.Message) ([]core.Event, error)
}

// ServerOptions configures a Server.
type ServerOptions struct {
	// Author is recorded on messages received from callers.
	Author string
	// Debug keeps gin in debug mode.
	Debug bool
	// MetricsHandler, when set, is mounted on GET /metrics.
	MetricsHandler http.Handler
	Logger         logging.Logger
}

// Server publishes an Executor as a remote agent. The descriptor is fixed at
// construction.
type Server struct {
	descriptor core.AgentDescriptor
	exec       Executor
	author     string
	engine     *gin.Engine
	logger     logging.Logger
}

// NewServer creates a Server. descriptor.URL must be the absolute address of
// the invoke route as seen by callers.
func NewServer(descriptor core.AgentDescriptor, exec Executor, optFns ...func(o *ServerOptions)) *Server {
	opts := ServerOptions{
		Author: "a2a",
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if descriptor.ProtocolVersion == "" {
		descriptor.ProtocolVersion = ProtocolVersion
	}

	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		descriptor: descriptor,
		exec:       exec,
		author:     opts.Author,
		engine:     engine,
		logger:     opts.Logger,
	}

	engine.Use(s.accessLog)
	engine.GET(DescriptorPath, s.handleDescriptor)
	engine.POST(InvokePath, s.handleInvoke)
	engine.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if opts.MetricsHandler != nil {
		engine.GET("/metrics", gin.WrapH(opts.MetricsHandler))
	}

	return s
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler { return s.engine }

// Descriptor returns the published descriptor.
func (s *Server) Descriptor() core.AgentDescriptor { return s.descriptor }

// TaskID returns the local task id used for a caller's correlation id.
func TaskID(correlationID string) string { return "a2a-" + correlationID }

func (s *Server) handleDescriptor(c *gin.Context) {
	c.JSON(http.StatusOK, s.descriptor)
}

func (s *Server) handleInvoke(c *gin.Context) {
	var req InvokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	taskID := req.TaskID
	msg := core.NewTextMessage(s.author, req.Message)
	if req.Decision != nil {
		msg = core.NewDecisionMessage(s.author, req.Decision.InvocationID, req.Decision.Approved)
	} else if taskID == "" {
		taskID = TaskID(req.CorrelationID)
	}

	events, err := s.exec.RunSync(c.Request.Context(), taskID, msg)

	switch {
	case errors.Is(err, core.ErrTaskBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case errors.Is(err, core.ErrUnknownInvocation):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case errors.Is(err, core.ErrInvalidTransition) && len(events) == 0:
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, respond(req.CorrelationID, taskID, events, err))
}

// respond maps the halting event of a turn to the wire response.
func respond(correlationID, taskID string, events []core.Event, err error) InvokeResponse {
	resp := InvokeResponse{CorrelationID: correlationID, TaskID: taskID, State: core.RemoteFailed}

	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	if len(events) == 0 {
		resp.Error = "turn produced no events"
		return resp
	}

	last := events[len(events)-1]
	switch {
	case last.IsFinalAnswer():
		resp.State = core.RemoteCompleted
		resp.Result = last.Text
	case last.IsPendingConfirmation():
		resp.State = core.RemoteInputRequired
		resp.Confirmation = &core.PendingConfirmation{
			InvocationID: last.Confirmation.InvocationID,
			Hint:         last.Confirmation.Hint,
			Payload:      last.Confirmation.Payload,
		}
	default:
		resp.Error = "turn halted on " + string(last.Kind)
	}

	return resp
}

func (s *Server) accessLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Info("a2a.server.request",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
		"duration", time.Since(start),
	)
}

// WithServerLogger sets the server logger.
func WithServerLogger(l logging.Logger) func(o *ServerOptions) {
	return func(o *ServerOptions) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithMetricsHandler mounts h on GET /metrics.
func WithMetricsHandler(h http.Handler) func(o *ServerOptions) {
	return func(o *ServerOptions) { o.MetricsHandler = h }
}
