package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/econolens/econolens/backend/internal/metrics"
	"github.com/econolens/econolens/backend/internal/sources"
)

// Common contains Elasticsearch parameters shared by every service.
type Common struct {
	ElasticsearchAddr  string
	ElasticsearchIndex string
}

// Aggregation bundles the pipeline knobs every binary that aggregates
// needs: adapter bounds, cache sizing, derivation parameters, and the
// upstream endpoints (overridable so tests and mirrors can redirect them).
type Aggregation struct {
	AdapterTimeout time.Duration
	FetchRateLimit int

	CacheTTL      time.Duration
	CacheCapacity int
	DocumentTTL   time.Duration

	TrendWindow   int
	StableBelow   float64
	ModerateBelow float64

	NewsLimit     int
	SearchBaseURL string
	MacroBaseURL  string
	NewsBaseURL   string
}

// API describes HTTP-layer configuration.
type API struct {
	Common
	Aggregation
	BindAddr string
}

// Worker holds configuration for the Kafka -> aggregation warm worker.
type Worker struct {
	Common
	Aggregation
	KafkaBrokers  []string
	KafkaTopic    string
	KafkaConsumer string
}

// Retention configures the cleanup loop.
type Retention struct {
	Common
	Interval  time.Duration
	MaxAge    time.Duration
	BatchSize int
}

func loadCommon() Common {
	return Common{
		ElasticsearchAddr:  getEnv("ELASTICSEARCH_ADDR", "http://elasticsearch:9200"),
		ElasticsearchIndex: getEnv("ELASTICSEARCH_INDEX", "entities"),
	}
}

func loadAggregation() (Aggregation, error) {
	a := Aggregation{
		AdapterTimeout: getDuration("ADAPTER_TIMEOUT", "15s"),
		FetchRateLimit: getInt("FETCH_RATE_LIMIT", sources.DefaultRateLimit),
		CacheTTL:       getDuration("CACHE_TTL", "5h"),
		CacheCapacity:  getInt("CACHE_CAPACITY", 100),
		DocumentTTL:    getDuration("DOCUMENT_TTL", "168h"),
		TrendWindow:    getInt("TREND_WINDOW", metrics.DefaultTrendWindow),
		StableBelow:    getFloat("VOLATILITY_STABLE_BELOW", metrics.DefaultStableBelow),
		ModerateBelow:  getFloat("VOLATILITY_MODERATE_BELOW", metrics.DefaultModerateBelow),
		NewsLimit:      getInt("NEWS_LIMIT", sources.DefaultNewsLimit),
		SearchBaseURL:  getEnv("SEARCH_BASE_URL", sources.DefaultSearchBaseURL),
		MacroBaseURL:   getEnv("MACRO_BASE_URL", sources.DefaultMacroBaseURL),
		NewsBaseURL:    getEnv("NEWS_BASE_URL", sources.DefaultNewsBaseURL),
	}

	if a.AdapterTimeout <= 0 {
		return a, fmt.Errorf("ADAPTER_TIMEOUT must be positive")
	}
	if a.FetchRateLimit <= 0 {
		return a, fmt.Errorf("FETCH_RATE_LIMIT must be positive")
	}
	if a.CacheTTL <= 0 {
		return a, fmt.Errorf("CACHE_TTL must be positive")
	}
	if a.CacheCapacity <= 0 {
		return a, fmt.Errorf("CACHE_CAPACITY must be positive")
	}
	if a.TrendWindow <= 0 {
		return a, fmt.Errorf("TREND_WINDOW must be positive")
	}
	if a.StableBelow <= 0 || a.ModerateBelow <= a.StableBelow {
		return a, fmt.Errorf("volatility thresholds must satisfy 0 < VOLATILITY_STABLE_BELOW < VOLATILITY_MODERATE_BELOW")
	}
	if a.NewsLimit <= 0 {
		return a, fmt.Errorf("NEWS_LIMIT must be positive")
	}

	return a, nil
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	agg, err := loadAggregation()
	if err != nil {
		return nil, err
	}

	c := &API{
		Common:      loadCommon(),
		Aggregation: agg,
		BindAddr:    getEnv("API_BIND_ADDR", "0.0.0.0:8080"),
	}

	return c, nil
}

// LoadWorker builds a Worker config from environment variables.
func LoadWorker() (*Worker, error) {
	agg, err := loadAggregation()
	if err != nil {
		return nil, err
	}

	c := &Worker{
		Common:        loadCommon(),
		Aggregation:   agg,
		KafkaBrokers:  splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "entity_refresh"),
		KafkaConsumer: getEnv("KAFKA_CONSUMER_GROUP", "refresh-worker"),
	}

	if len(c.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}

	return c, nil
}

// LoadRetention builds a Retention config from environment variables.
func LoadRetention() (*Retention, error) {
	c := &Retention{
		Common:    loadCommon(),
		Interval:  getDuration("RETENTION_INTERVAL", "24h"),
		MaxAge:    getDuration("RETENTION_MAX_AGE", "336h"),
		BatchSize: getInt("RETENTION_BATCH_SIZE", 500),
	}

	if c.MaxAge <= 0 {
		return nil, fmt.Errorf("RETENTION_MAX_AGE must be positive")
	}
	if c.Interval <= 0 {
		return nil, fmt.Errorf("RETENTION_INTERVAL must be positive")
	}
	if c.BatchSize <= 0 {
		return nil, fmt.Errorf("RETENTION_BATCH_SIZE must be positive")
	}

	return c, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
