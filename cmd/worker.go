package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"example.com/gurpos/services/sync/config"
	"example.com/gurpos/services/sync/internal/cache"
	"example.com/gurpos/services/sync/internal/database"
	"example.com/gurpos/services/sync/internal/messaging"
	"example.com/gurpos/services/sync/internal/metrics"
	"example.com/gurpos/services/sync/internal/models"
	"example.com/gurpos/services/sync/internal/search"
	"example.com/gurpos/services/sync/internal/services"
	"example.com/gurpos/services/sync/internal/tracing"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Start the background worker to apply queued push batches and finalize stale provisional vouchers`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
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

	g, ctx := errgroup.WithContext(ctx)

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

	metricsCollector := metrics.NewMetrics()
	metricsCollector.SetHealth("database", true)
	metricsCollector.SetHealth("redis", redisCache != nil)

	voucherService := services.NewVoucherService(db.DB, db.ReadOnlyDB, redisCache, cfg.Voucher)
	syncService := services.NewSyncService(db.DB, db.ReadOnlyDB, voucherService, redisCache, elasticClient, metricsCollector, tracer)

	receiver, err := messaging.NewReceiver(cfg.Azure)
	if err != nil {
		return err
	}
	defer receiver.Close()

	// Queued push batches from devices on unreliable links.
	g.Go(func() error {
		log.Info().Str("queue", cfg.Azure.QueueName).Msg("Starting Service Bus processor")
		return receiver.Run(ctx, syncService.ProcessPushMessage)
	})

	// Fallback finalization of provisional vouchers whose clients never
	// confirmed them.
	g.Go(func() error {
		log.Info().Msg("Starting voucher finalization cron job")

		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(cfg.Worker.ReconcileInterval),
			gocron.NewTask(func() {
				finalized, err := voucherService.FinalizeStaleProvisionals(ctx)
				if err != nil {
					log.Error().Err(err).Msg("Failed to finalize stale provisional vouchers")
					return
				}
				if finalized > 0 {
					log.Info().Int("finalized", finalized).Msg("Finalized stale provisional vouchers")
				}
			}),
		)
		if err != nil {
			return err
		}

		scheduler.Start()

		<-ctx.Done()

		return scheduler.Shutdown()
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}
