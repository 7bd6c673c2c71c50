// Package server exposes the turn engine over HTTP: the chat endpoint with
// day views and deletion, diary reads and deletion, the persona-refresh
// admin hook, and the health and metrics probes.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taedam/internal/config"
	"taedam/internal/envelope"
	"taedam/internal/history"
	"taedam/internal/logging"
	"taedam/internal/store"
)

// TurnRunner executes one conversational turn.
type TurnRunner interface {
	RunTurn(ctx context.Context, input envelope.Input) *envelope.Output
}

// Store is the persistence surface the HTTP layer touches directly.
type Store interface {
	SaveMessage(ctx context.Context, msg store.Message) error
	MessagesByDate(ctx context.Context, sessionID, date string) ([]store.Message, error)
	DeleteSessionMessages(ctx context.Context, sessionID string) error
	DeleteLastMessage(ctx context.Context, sessionID string) (bool, error)
	GetBaby(ctx context.Context, sessionID string) (*store.BabyProfile, error)
	UpsertBaby(ctx context.Context, p store.BabyProfile) error
	GetMother(ctx context.Context, sessionID string) (*store.MotherProfile, error)
	UpsertMother(ctx context.Context, p store.MotherProfile) error
	ListDiaries(ctx context.Context, sessionID string) ([]store.DiaryEntry, error)
	DiaryByDate(ctx context.Context, sessionID, date string) (*store.DiaryEntry, error)
	DeleteDiary(ctx context.Context, sessionID, date string) (bool, error)
}

// HistoryProvider builds the snapshot the persona-refresh hook feeds to the
// background job.
type HistoryProvider interface {
	GetOrBuild(ctx context.Context, sessionID, date string) (*history.Block, error)
}

// PersonaScheduler enqueues an on-demand persona refresh.
type PersonaScheduler interface {
	SchedulePersonaRefresh(sessionID string, block *history.Block)
}

// Server is the HTTP front of the engine.
type Server struct {
	engine    *gin.Engine
	http      *http.Server
	runner    TurnRunner
	store     Store
	historian HistoryProvider
	personas  PersonaScheduler
	logger    logging.Logger
}

// New wires routes and middleware. personas may be nil, disabling the
// refresh endpoint.
func New(cfg config.Server, runner TurnRunner, st Store, historian HistoryProvider, personas PersonaScheduler, logger logging.Logger) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSOrigins) == 1 && cfg.CORSOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	engine.Use(cors.New(corsConfig))

	s := &Server{
		engine:    engine,
		runner:    runner,
		store:     st,
		historian: historian,
		personas:  personas,
		logger:    logging.OrNop(logger),
		http: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      engine,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
		},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api")
	api.POST("/chat", s.handleChat)
	api.GET("/chats", s.handleChatsByDate)
	api.DELETE("/chats", s.handleResetSession)
	api.DELETE("/chats/last", s.handleDeleteLastMessage)
	api.GET("/diaries", s.handleListDiaries)
	api.GET("/diaries/:date", s.handleDiaryByDate)
	api.DELETE("/diaries/:date", s.handleDeleteDiary)
	api.POST("/persona/refresh", s.handlePersonaRefresh)
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening on %s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}
