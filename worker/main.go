package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"

	"github.com/econolens/econolens/backend/internal/aggregator"
	"github.com/econolens/econolens/backend/internal/cache"
	"github.com/econolens/econolens/backend/internal/config"
	"github.com/econolens/econolens/backend/internal/docstore"
	"github.com/econolens/econolens/backend/internal/logger"
	"github.com/econolens/econolens/backend/internal/metrics"
	"github.com/econolens/econolens/backend/internal/models"
	"github.com/econolens/econolens/backend/internal/refdata"
	"github.com/econolens/econolens/backend/internal/sources"
)

// refresher is the slice of the aggregator the worker consumes.
type refresher interface {
	Refresh(ctx context.Context, key string) (models.AggregatedDocument, error)
}

// The worker consumes entity keys ("company:andela", "country:ng") and
// rebuilds their documents ahead of demand. Refreshing is best-effort:
// a key that cannot be rebuilt now will be rebuilt on the next request
// or the next message, so every message is committed exactly once.
func main() {
	_ = godotenv.Load()

	log := logger.New("worker")
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ref, err := refdata.Load()
	if err != nil {
		log.Error("load reference data", slog.Any("err", err))
		os.Exit(1)
	}

	store, err := docstore.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		log.Error("init document store", slog.Any("err", err))
		os.Exit(1)
	}

	fetcher := sources.NewFetcher(log,
		sources.WithTimeout(cfg.AdapterTimeout),
		sources.WithRateLimit(cfg.FetchRateLimit),
	)

	agg := aggregator.New(
		cache.New(cfg.CacheCapacity, cfg.CacheTTL),
		store,
		sources.NewCompanyAdapter(fetcher, ref, cfg.SearchBaseURL, log),
		sources.NewMacroAdapter(fetcher, ref, cfg.MacroBaseURL, log),
		sources.NewNewsAdapter(fetcher, sources.NewVaderScorer(), cfg.NewsBaseURL, cfg.NewsLimit, log),
		ref,
		aggregator.Options{
			TrendWindow: cfg.TrendWindow,
			Thresholds:  metrics.Thresholds{StableBelow: cfg.StableBelow, ModerateBelow: cfg.ModerateBelow},
			DocumentTTL: cfg.DocumentTTL,
		},
		log,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaTopic,
		GroupID:        cfg.KafkaConsumer,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		CommitInterval: 0, // Disable auto-commit; manual commit only
	})
	defer reader.Close()

	log.Info("refresh worker started",
		slog.String("topic", cfg.KafkaTopic),
		slog.String("group", cfg.KafkaConsumer),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("context canceled, stopping")
				return
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}

		refresh(ctx, log, agg, msg)

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message", slog.Any("err", err))
		}
	}
}

func refresh(ctx context.Context, log *slog.Logger, agg refresher, msg kafka.Message) {
	key := strings.TrimSpace(string(msg.Value))
	if key == "" {
		log.Warn("empty refresh key",
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
		)
		return
	}

	doc, err := agg.Refresh(ctx, key)
	switch {
	case err == nil:
		log.Info("entity refreshed", slog.String("key", doc.Key))
	case errors.Is(err, aggregator.ErrNotFound):
		log.Info("nothing to refresh", slog.String("key", key))
	default:
		log.Warn("refresh failed, will retry on next publish",
			slog.String("key", key),
			slog.Any("err", err),
		)
	}
}
