package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

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

func main() {
	_ = godotenv.Load()

	log := logger.New("api")
	cfg, err := config.LoadAPI()
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

	srv := &server{log: log, agg: agg, store: store}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", srv.handleHealth)
	r.Get("/information/{company}", srv.handleCompany)
	r.Delete("/information/{company}", srv.handleInvalidateCompany)
	r.Get("/macro/{country}", srv.handleCountry)
	r.Delete("/macro/{country}", srv.handleInvalidateCountry)

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		log.Info("api server starting", slog.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

type server struct {
	log   *slog.Logger
	agg   *aggregator.Aggregator
	store *docstore.Store
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Health(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleCompany(w http.ResponseWriter, r *http.Request) {
	name, ok := pathEntity(w, r, "company")
	if !ok {
		return
	}

	doc, err := s.agg.CompanyDocument(r.Context(), name)
	s.writeDocument(w, r, name, doc, err)
}

func (s *server) handleCountry(w http.ResponseWriter, r *http.Request) {
	name, ok := pathEntity(w, r, "country")
	if !ok {
		return
	}

	doc, err := s.agg.CountryDocument(r.Context(), name)
	s.writeDocument(w, r, name, doc, err)
}

func (s *server) handleInvalidateCompany(w http.ResponseWriter, r *http.Request) {
	s.invalidate(w, r, models.KindCompany, "company")
}

func (s *server) handleInvalidateCountry(w http.ResponseWriter, r *http.Request) {
	s.invalidate(w, r, models.KindCountry, "country")
}

func (s *server) invalidate(w http.ResponseWriter, r *http.Request, kind, param string) {
	name, ok := pathEntity(w, r, param)
	if !ok {
		return
	}

	if err := s.agg.Invalidate(r.Context(), kind, name); err != nil {
		s.log.Error("invalidate", slog.String("name", name), slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "invalidation failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (s *server) writeDocument(w http.ResponseWriter, r *http.Request, name string, doc models.AggregatedDocument, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, doc)
	case errors.Is(err, aggregator.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no data found for " + name})
	case errors.Is(err, aggregator.ErrUnavailable):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "upstream sources unavailable"})
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
	default:
		s.log.Error("aggregate", slog.String("name", name), slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "aggregation failed"})
	}
}

// pathEntity extracts and decodes the entity name from the route. Blank
// names are rejected here so the pipeline only ever sees real lookups.
func pathEntity(w http.ResponseWriter, r *http.Request, param string) (string, bool) {
	raw := chi.URLParam(r, param)
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: param + " must not be blank"})
		return "", false
	}
	return raw, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
