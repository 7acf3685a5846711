// Package api implements the gin HTTP transport over the control plane's
// services (spec.md §6). It holds no business logic: handlers translate
// JSON requests into service calls and map typed errors to status codes.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openclaw/openclaw/internal/budget"
	"github.com/openclaw/openclaw/internal/config"
	"github.com/openclaw/openclaw/internal/directory"
	"github.com/openclaw/openclaw/internal/eventlog"
	"github.com/openclaw/openclaw/internal/humanloop"
	"github.com/openclaw/openclaw/internal/logger"
	"github.com/openclaw/openclaw/internal/message"
	"github.com/openclaw/openclaw/internal/review"
	"github.com/openclaw/openclaw/internal/runner"
	"github.com/openclaw/openclaw/internal/task"
)

// Server wires every control-plane service to a gin.Engine.
type Server struct {
	engine *gin.Engine
	log    *logger.Logger

	directory *directory.Service
	tasks     *task.Service
	messages  *message.Service
	budgetSvc *budget.Service
	humanLoop *humanloop.Service
	reviews   *review.Service
	events    eventlog.Store
	runner    *runner.Runner
}

func NewServer(
	dirSvc *directory.Service,
	taskSvc *task.Service,
	messageSvc *message.Service,
	budgetSvc *budget.Service,
	humanLoopSvc *humanloop.Service,
	reviewSvc *review.Service,
	events eventlog.Store,
	runnerSvc *runner.Runner,
	cfg config.ServerConfig,
	log *logger.Logger,
) *Server {
	if log == nil {
		log = logger.Default()
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(log))
	engine.Use(cors(cfg.CORSOrigins))

	s := &Server{
		engine: engine, log: log.WithFields(zap.String("component", "api")),
		directory: dirSvc, tasks: taskSvc, messages: messageSvc, budgetSvc: budgetSvc,
		humanLoop: humanLoopSvc, reviews: reviewSvc, events: events, runner: runnerSvc,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

// cors allows the configured origins (or "*" when none are configured),
// matching the teacher's all-methods/all-headers CORS posture.
func cors(origins []string) gin.HandlerFunc {
	allowAll := len(origins) == 0
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowAll {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if allowed[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", strings.Join([]string{"Origin", "Content-Type", "Authorization"}, ", "))
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
