package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"screener/internal/config"
	"screener/internal/gateway"
	"screener/internal/logging"
	"screener/internal/notifications"
	"screener/internal/progress"
	"screener/internal/services"
	"screener/internal/taskclient"
)

const maxTaskBody = 8 << 20

type apiServer struct {
	bind     string
	interval time.Duration
	card     taskclient.AgentCard
	logger   *slog.Logger
	daemon   *Daemon
	engine   *gin.Engine

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

// HostCard returns the capability card the orchestrator publishes.
func HostCard(cfg *config.Config) taskclient.AgentCard {
	return taskclient.AgentCard{
		AgentID:        "host-agent",
		Endpoint:       cfg.AdvertisedEndpoint(),
		Capabilities:   []string{"coordinate_screening", "task_delegation"},
		Authentication: "none",
		InputFormats:   []string{"json"},
		OutputFormats:  []string{"json"},
		Description:    "Coordinates resume screening tasks among agents.",
	}
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	gin.SetMode(gin.ReleaseMode)
	srv := &apiServer{
		bind:     strings.TrimSpace(cfg.API.Bind),
		interval: cfg.StreamInterval(),
		card:     HostCard(cfg),
		logger:   logging.NewComponentLogger(logger, "api-server"),
		daemon:   d,
	}

	engine := gin.New()
	engine.Use(srv.requestContext())
	engine.Use(gin.CustomRecovery(srv.recoverPanic))
	corsConfig := cors.DefaultConfig()
	if len(cfg.API.AllowOrigins) == 0 || slices.Contains(cfg.API.AllowOrigins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.API.AllowOrigins
	}
	corsConfig.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	engine.Use(cors.New(corsConfig))

	engine.POST("/task", srv.handleTask)
	engine.GET(taskclient.WellKnownPath, srv.handleAgentCard)
	engine.GET("/events", srv.handleGlobalEvents)
	engine.GET("/events/:task_id", srv.handleRunEvents)
	engine.GET("/api/runs/:task_id", srv.handleRun)
	engine.GET("/api/status", srv.handleStatus)
	engine.POST("/api/notifications/test", srv.handleTestNotification)
	if cfg.Metrics.Enabled && d.gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.gatherer, promhttp.HandlerOpts{})))
	}
	srv.engine = engine
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.mu.Unlock()
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// requestContext stamps a request id on the context and logs each request.
func (s *apiServer) requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		c.Request = c.Request.WithContext(services.WithRequestID(c.Request.Context(), requestID))

		started := time.Now()
		c.Next()
		s.logger.Debug("http request",
			logging.String("method", c.Request.Method),
			logging.String("path", c.FullPath()),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("elapsed", time.Since(started)),
			logging.String(logging.FieldCorrelationID, requestID),
		)
	}
}

func (s *apiServer) recoverPanic(c *gin.Context, recovered any) {
	err := fmt.Errorf("panic: %v", recovered)
	logging.ErrorWithContext(s.logger, "api handler panicked", "api_panic",
		logging.Error(err),
		logging.String("path", c.Request.URL.Path),
		logging.String(logging.FieldErrorHint, "inspect the daemon log for the failing request"),
	)
	if notifyErr := s.daemon.notifier.Publish(context.WithoutCancel(c.Request.Context()), notifications.EventError, notifications.Payload{
		"context": "api " + c.Request.URL.Path,
		"error":   err,
	}); notifyErr != nil {
		s.logger.Debug("error notification failed", logging.Error(notifyErr))
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func (s *apiServer) handleTask(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxTaskBody+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task format: body unreadable"})
		return
	}
	if len(body) > maxTaskBody {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "task body too large"})
		return
	}

	resp, err := s.daemon.gateway.Submit(c.Request.Context(), body)
	if err == nil {
		c.JSON(http.StatusOK, resp)
		return
	}
	var gerr *gateway.Error
	if !errors.As(err, &gerr) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	switch gerr.Kind {
	case gateway.KindInvalidFormat:
		c.JSON(http.StatusBadRequest, gin.H{"error": gerr.Detail})
	case gateway.KindConflict:
		c.JSON(http.StatusConflict, gin.H{"error": gerr.Error(), "task_id": gerr.TaskID})
	default:
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   gerr.Error(),
			"task_id": gerr.TaskID,
			"stage":   gerr.Stage,
			"kind":    gerr.Failure,
		})
	}
}

func (s *apiServer) handleAgentCard(c *gin.Context) {
	c.JSON(http.StatusOK, s.card)
}

func (s *apiServer) handleGlobalEvents(c *gin.Context) {
	s.stream(c, s.daemon.gateway.Hub().Global())
}

func (s *apiServer) handleRunEvents(c *gin.Context) {
	ch, ok := s.daemon.gateway.Hub().Channel(c.Param("task_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown task"})
		return
	}
	s.stream(c, ch)
}

// stream writes the channel's status as server-sent events: once on every
// change and again each interval so late-joining clients converge. The
// stream ends when the client leaves or the channel closes.
func (s *apiServer) stream(c *gin.Context, ch *progress.Channel) {
	ctx := c.Request.Context()
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	var since uint64
	for {
		waitCtx, cancel := context.WithTimeout(ctx, s.interval)
		value, version, err := ch.Wait(waitCtx, since)
		cancel()
		switch {
		case err == nil:
			since = version
		case errors.Is(err, progress.ErrClosed):
			return
		case ctx.Err() != nil:
			return
		default:
			if version == 0 {
				continue
			}
		}
		if writeErr := writeEvent(c.Writer, value); writeErr != nil {
			return
		}
		c.Writer.Flush()
	}
}

func writeEvent(w io.Writer, status string) error {
	status = strings.ReplaceAll(status, "\r", " ")
	status = strings.ReplaceAll(status, "\n", " ")
	_, err := fmt.Fprintf(w, "data: %s\n\n", status)
	return err
}

func (s *apiServer) handleRun(c *gin.Context) {
	snap, ok := s.daemon.gateway.Lookup(c.Param("task_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown task"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *apiServer) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.daemon.Status(c.Request.Context()))
}

// NotificationResult reports the outcome of a test notification.
type NotificationResult struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func (s *apiServer) handleTestNotification(c *gin.Context) {
	sent, message, err := s.daemon.TestNotification(c.Request.Context())
	result := NotificationResult{Sent: sent, Message: message}
	if err != nil {
		result.Error = err.Error()
		c.JSON(http.StatusBadGateway, result)
		return
	}
	c.JSON(http.StatusOK, result)
}
