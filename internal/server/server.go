// Package server exposes the election reporting API over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/elrep/internal/activity"
	"github.com/smallbiznis/elrep/internal/authorization"
	"github.com/smallbiznis/elrep/internal/config"
	"github.com/smallbiznis/elrep/internal/definition"
	"github.com/smallbiznis/elrep/internal/election"
	electiondomain "github.com/smallbiznis/elrep/internal/election/domain"
	"github.com/smallbiznis/elrep/internal/jurisdiction"
	"github.com/smallbiznis/elrep/internal/results"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	activity.Module,
	authorization.Module,
	definition.Module,
	jurisdiction.Module,
	election.Module,
	results.Module,
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(MetricsMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddress,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("address", cfg.HTTPAddress))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	db          *gorm.DB
	log         *zap.Logger
	electionSvc electiondomain.Service
	resultsSvc  results.Service
	authzSvc    authorization.Service
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	DB          *gorm.DB
	Log         *zap.Logger
	ElectionSvc electiondomain.Service
	ResultsSvc  results.Service
	AuthzSvc    authorization.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		db:          p.DB,
		log:         p.Log.Named("http.server"),
		electionSvc: p.ElectionSvc,
		resultsSvc:  p.ResultsSvc,
		authzSvc:    p.AuthzSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.POST("/election", s.CreateElection)

	el := api.Group("/election/:electionId")
	{
		el.DELETE("", s.DeleteElection)
		el.GET("/definition/file", s.GetDefinitionFile)
		el.GET("/jurisdiction/file", s.GetJurisdictionsFile)
		el.PUT("/jurisdiction/file", s.UpdateJurisdictionsFile)
		el.GET("/data", s.GetElectionData)

		jur := el.Group("/jurisdiction/:jurisdictionId")
		{
			jur.POST("/results", s.SubmitResults)
			jur.GET("/results", s.GetResultsStatus)
		}
	}
}

// authorize consults the access control gate for a mutation scoped to one
// organization. Reads go through the same gate with view actions.
func (s *Server) authorize(c *gin.Context, orgID snowflake.ID, object, action string) error {
	return s.authzSvc.Authorize(c.Request.Context(), actorFrom(c), orgID, object, action)
}
