package http

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/churnpredict/churnd/internal/churn"
	"github.com/churnpredict/churnd/internal/config"
	"github.com/churnpredict/churnd/internal/http/middleware"
	"github.com/churnpredict/churnd/internal/metrics"
	"github.com/churnpredict/churnd/internal/model"
	"github.com/churnpredict/churnd/internal/repository"
	"github.com/churnpredict/churnd/internal/service/chat"
	"github.com/churnpredict/churnd/internal/service/pipeline"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct{ e *echo.Echo }

func NewServer(cfg config.Config, mysqlDB, clickhouseDB *sqlx.DB, rds *redis.Client) *Server {
	// repos (MySQL)
	usersRepo := repository.NewUsersRepository(mysqlDB)
	customersRepo := repository.NewCustomersRepository(mysqlDB)

	// repos (ClickHouse)
	chPredictionsRepo := repository.NewCHPredictionsRepository(clickhouseDB)

	// model provider + services
	provider := churn.NewProvider(churn.NewStore(cfg.Model.Path))
	pipe := pipeline.New(customersRepo, chPredictionsRepo, provider, churn.TrainOptions{
		TestSize:     cfg.Model.TestSize,
		Epochs:       cfg.Model.Epochs,
		LearningRate: cfg.Model.LearningRate,
	}, zap.L())
	chatSvc := chat.New(customersRepo, zap.L())

	// echo
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMid.Recover(), echoMid.Logger())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	authMW := middleware.APIKeyMiddleware(usersRepo)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          rds,
		DefaultRPS:     cfg.RateLimit.RPS,
		KeyPrefix:      "rl:user:",
		Window:         time.Second,
		RetryAfterHint: true,
	})
	adminMW := middleware.RequireRole(model.RoleAdmin)

	// routes
	v1 := e.Group("/v1", authMW, rlMW)
	v1.POST("/customers/import", importCustomersHandler(pipe), adminMW)
	v1.GET("/customers/:id/churn", churnHandler(pipe))
	v1.POST("/customers/:id/score", scoreCustomerHandler(pipe))
	v1.POST("/model/train", trainHandler(pipe), adminMW)
	v1.GET("/model/importances", importancesHandler(pipe))
	v1.GET("/stats", statsHandler(customersRepo))
	v1.GET("/reports/predictions", listPredictionsHandler(chPredictionsRepo))
	v1.POST("/chat", chatHandler(chatSvc))

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	log.Printf("http: listening on %s", addr)
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
