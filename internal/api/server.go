package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/gurpos/services/sync/config"
	"example.com/gurpos/services/sync/internal/api/handlers"
	"example.com/gurpos/services/sync/internal/api/middleware"
	"example.com/gurpos/services/sync/internal/messaging"
	"example.com/gurpos/services/sync/internal/metrics"
	"example.com/gurpos/services/sync/internal/services"
	"example.com/gurpos/services/sync/internal/tracing"
)

// Server represents the HTTP server
type Server struct {
	config      config.Config
	router      *gin.Engine
	httpServer  *http.Server
	syncService *services.SyncService
	vouchers    *services.VoucherService
	queue       messaging.ServiceBusClient
	metrics     *metrics.Metrics
	tracer      tracing.Tracer
}

// NewServer creates a new HTTP server
func NewServer(
	cfg config.Config,
	syncService *services.SyncService,
	vouchers *services.VoucherService,
	queue messaging.ServiceBusClient,
	metricsCollector *metrics.Metrics,
	tracer tracing.Tracer,
) *Server {
	server := &Server{
		config:      cfg,
		syncService: syncService,
		vouchers:    vouchers,
		queue:       queue,
		metrics:     metricsCollector,
		tracer:      tracer,
	}

	server.router = server.setupRouter()
	server.httpServer = &http.Server{
		Addr:    cfg.ServerAddress,
		Handler: server.router,
	}

	return server
}

// setupRouter configures the HTTP router
func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())

	// Operational endpoints stay outside the identity check.
	metricsHandler := handlers.NewMetricsHandler(s.metrics, s.tracer)
	metricsHandler.RegisterRoutes(router)

	authed := router.Group("/", middleware.Identity())

	// The queue is optional; the enqueue endpoint answers 503 without it.
	var queue handlers.PushQueue
	if s.queue != nil {
		queue = s.queue
	}
	syncHandler := handlers.NewSyncHandler(s.syncService, queue, s.tracer)
	syncHandler.RegisterRoutes(authed)

	voucherHandler := handlers.NewVoucherHandler(s.vouchers, s.tracer)
	voucherHandler.RegisterRoutes(authed)

	return router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.config.ServerAddress).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("HTTP server shut down successfully")
	return nil
}
