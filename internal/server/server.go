// Package server exposes the session core over an HTTP API. It owns request
// identity, routing, and the mapping from domain errors to statuses; all
// behavior lives in the services it fronts.
package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coworkhq/coworkd/internal/feedback"
	"github.com/coworkhq/coworkd/internal/monitor"
	"github.com/coworkhq/coworkd/internal/orchestrator"
	"github.com/coworkhq/coworkd/internal/rendezvous"
	"github.com/coworkhq/coworkd/internal/skills"
	"github.com/coworkhq/coworkd/internal/store"
)

// Options carries the services the API fronts.
type Options struct {
	Logger *slog.Logger

	Store        *store.Store
	Orchestrator *orchestrator.Orchestrator
	Questions    *rendezvous.Registry
	Skills       *skills.Resolver
	Feedback     *feedback.Aggregator
	Monitor      *monitor.Service

	// Debug keeps gin in debug mode; off by default.
	Debug bool
}

type Server struct {
	log *slog.Logger

	st        *store.Store
	orch      *orchestrator.Orchestrator
	questions *rendezvous.Registry
	skills    *skills.Resolver
	feedback  *feedback.Aggregator
	monitor   *monitor.Service

	engine *gin.Engine
}

func New(opts Options) (*Server, error) {
	if opts.Store == nil || opts.Orchestrator == nil || opts.Questions == nil {
		return nil, errors.New("missing store, orchestrator or question registry")
	}
	if opts.Skills == nil || opts.Feedback == nil {
		return nil, errors.New("missing skills resolver or feedback aggregator")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		log:       log,
		st:        opts.Store,
		orch:      opts.Orchestrator,
		questions: opts.Questions,
		skills:    opts.Skills,
		feedback:  opts.Feedback,
		monitor:   opts.Monitor,
	}
	s.engine = s.buildRouter()
	return s, nil
}

// Handler returns the HTTP handler for mounting or serving.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) buildRouter() *gin.Engine {
	e := gin.New()
	e.Use(gin.Recovery(), s.requestID())

	api := e.Group("/api")
	api.GET("/status", s.handleStatus)

	auth := api.Group("", s.identity())
	auth.POST("/sessions", s.handleCreateSession)
	auth.GET("/sessions", s.handleListSessions)
	auth.GET("/sessions/:id", s.handleGetSession)
	auth.GET("/sessions/:id/agents", s.handleListAgents)
	auth.POST("/sessions/:id/agents/:agentId/cancel", s.handleCancelAgent)
	auth.GET("/sessions/:id/feedback", s.handleListFeedback)
	auth.POST("/sessions/:id/feedback", s.handleRecordFeedback)
	auth.GET("/sessions/:id/questions/:questionId", s.handleGetQuestion)
	auth.POST("/sessions/:id/questions/:questionId/answer", s.handleAnswerQuestion)
	auth.GET("/skills", s.handleListSkills)
	auth.POST("/skills", s.handleCreateSkill)

	return e
}

func abortError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// renderError maps a domain error to the boundary taxonomy. Anything not
// recognized is an internal error: logged with detail, reported generically.
func (s *Server) renderError(c *gin.Context, err error) {
	var verr *skills.ValidationError
	switch {
	case errors.Is(err, store.ErrNotFound):
		abortError(c, http.StatusNotFound, "not found")
	case errors.As(err, &verr):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": verr.Fields})
	case errors.Is(err, feedback.ErrInvalidRating):
		abortError(c, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "err", err)
		abortError(c, http.StatusInternalServerError, "internal error")
	}
}
