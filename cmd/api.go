package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"example.com/gurpos/services/sync/config"
	"example.com/gurpos/services/sync/internal/api"
	"example.com/gurpos/services/sync/internal/cache"
	"example.com/gurpos/services/sync/internal/database"
	"example.com/gurpos/services/sync/internal/messaging"
	"example.com/gurpos/services/sync/internal/metrics"
	"example.com/gurpos/services/sync/internal/models"
	"example.com/gurpos/services/sync/internal/search"
	"example.com/gurpos/services/sync/internal/services"
	"example.com/gurpos/services/sync/internal/tracing"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long:  `Start the HTTP API server to handle sync pulls, pushes and voucher operations`,
	RunE:  runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	db, err := database.Connect(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := models.SetupModels(db.DB); err != nil {
		return errors.Wrap(err, "failed to run migrations")
	}

	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
	}

	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
	}

	elasticClient, err := search.NewElasticClient(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search functionality")
	}

	queue, err := messaging.NewServiceBusClient(cfg.Azure)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Service Bus sender, continuing without async push")
	} else {
		defer queue.Close()
	}

	metricsCollector := metrics.NewMetrics()
	metricsCollector.SetHealth("database", true)
	metricsCollector.SetHealth("redis", redisCache != nil)

	voucherService := services.NewVoucherService(db.DB, db.ReadOnlyDB, redisCache, cfg.Voucher)
	syncService := services.NewSyncService(db.DB, db.ReadOnlyDB, voucherService, redisCache, elasticClient, metricsCollector, tracer)

	server := api.NewServer(cfg, syncService, voucherService, queue, metricsCollector, tracer)

	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Server error")
		}
	}()

	<-ctx.Done()

	if err := server.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Shutting down API server")
	return nil
}
