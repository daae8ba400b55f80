// Package bootstrap builds the gateway's dependency graph from config. Both
// the HTTP server and signalctl construct their clients through it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/olash/SignalReach-sub000/internal/metrics"
	"github.com/olash/SignalReach-sub000/internal/usertoken"
	"github.com/olash/SignalReach-sub000/internal/util"
	"github.com/olash/SignalReach-sub000/pkg/ai"
	"github.com/olash/SignalReach-sub000/pkg/apify"
	"github.com/olash/SignalReach-sub000/pkg/draft"
	"github.com/olash/SignalReach-sub000/pkg/queue"
	"github.com/olash/SignalReach-sub000/pkg/scrape"
	"github.com/olash/SignalReach-sub000/pkg/storage"
	"github.com/olash/SignalReach-sub000/pkg/store"
	"github.com/olash/SignalReach-sub000/services/gateway/internal/app"
	"github.com/olash/SignalReach-sub000/services/gateway/internal/authclient"
	"github.com/olash/SignalReach-sub000/services/gateway/internal/config"
	"github.com/olash/SignalReach-sub000/services/gateway/internal/server"
)

// Deps holds every constructed client. Close releases them.
type Deps struct {
	Config   config.FileConfig
	Redis    *redis.Client
	Store    *store.GormStore
	Queue    *queue.RedisJobQueue
	Pipeline *scrape.Pipeline
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	App      *app.App
}

// Build connects to Postgres and Redis and wires the application core.
// Postgres migrations run as part of opening the store.
func Build(cfg config.FileConfig) (*Deps, error) {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	st, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("init store: %w", err)
	}
	d := &Deps{Config: cfg, Redis: rdb, Store: st}
	if err := d.wire(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (d *Deps) wire() error {
	cfg := d.Config
	d.Registry = prometheus.NewRegistry()
	d.Metrics = metrics.New(d.Registry)

	gen, err := ai.NewGenerator(ai.Config{
		Provider:    cfg.GenerationProvider,
		BaseURL:     cfg.GenerationBaseURL,
		APIKey:      cfg.GenerationAPIKey,
		Model:       cfg.GenerationModel,
		Temperature: cfg.GenerationTemp,
		Timeout:     cfg.GenerationTimeoutDuration(),
	})
	if err != nil {
		return fmt.Errorf("init generator: %w", err)
	}
	drafter := draft.NewService(gen,
		draft.WithTimeout(cfg.GenerationTimeoutDuration()),
		draft.WithMetrics(d.Metrics),
	)

	apifyClient, err := apify.NewClient(cfg.ApifyToken, apify.WithBaseURL(cfg.ApifyBaseURL))
	if err != nil {
		return fmt.Errorf("init apify client: %w", err)
	}
	opts := []scrape.Option{scrape.WithMetrics(d.Metrics)}
	if cfg.ArchiveEnabled() {
		objects, err := storage.NewMinioStore(storage.MinioConfig{
			Endpoint:  cfg.ArchiveEndpoint,
			AccessKey: cfg.ArchiveAccessKey,
			SecretKey: cfg.ArchiveSecretKey,
			Bucket:    cfg.ArchiveBucket,
			Region:    cfg.ArchiveRegion,
			UseSSL:    cfg.ArchiveUseSSL,
		})
		if err != nil {
			return fmt.Errorf("init scrape archive: %w", err)
		}
		opts = append(opts, scrape.WithArchiver(scrape.NewObjectArchive(objects, "")))
	} else {
		slog.Info("scrape archive disabled")
	}
	d.Pipeline = scrape.New(d.Store,
		scrape.NewActorScraper(apifyClient, cfg.ScrapeActorID, cfg.ScrapeMaxItems, cfg.WaitTimeout()),
		scrape.Config{
			Concurrency:      cfg.ScrapeConcurrency,
			AllowDuplicates:  cfg.ScrapeAllowDuplicates,
			RespectFrequency: cfg.ScrapeRespectFrequency,
		},
		opts...,
	)

	d.Queue, err = queue.NewRedisJobQueue(queue.RedisQueueConfig{
		Client: d.Redis,
		Stream: cfg.QueueStream,
		Group:  cfg.QueueGroup,
	})
	if err != nil {
		return fmt.Errorf("init scrape queue: %w", err)
	}

	d.App, err = app.New(app.Config{
		Store:         d.Store,
		Preferences:   store.NewRedisPreferenceStore(d.Redis, ""),
		Drafter:       drafter,
		Scraper:       d.Pipeline,
		Queue:         d.Queue,
		Metrics:       d.Metrics,
		ScrapeTimeout: cfg.RunTimeout(),
	})
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	return nil
}

// Server builds the HTTP layer on top of the wired app.
func (d *Deps) Server() (*server.Server, error) {
	cfg := d.Config
	verifier, err := usertoken.NewVerifier(usertoken.Config{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		Leeway:   cfg.Leeway(),
	})
	if err != nil {
		return nil, fmt.Errorf("init token verifier: %w", err)
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		return nil, fmt.Errorf("parse trusted proxies: %w", err)
	}
	return server.New(server.Config{
		App:                       d.App,
		Auth:                      authclient.NewClient(cfg.AuthURL, cfg.AuthAnonKey),
		TokenVerifier:             verifier,
		Redis:                     d.Redis,
		CronSecret:                cfg.CronSecret,
		AllowedOrigins:            cfg.AllowedOrigins,
		TrustedProxies:            trusted,
		Metrics:                   d.MetricsHandler(),
		LoginRateLimitPerMinute:   cfg.LoginRateLimitPerMinute,
		RefreshRateLimitPerMinute: cfg.RefreshRateLimitPerMinute,
		DraftRateLimitPerMinute:   cfg.DraftRateLimitPerMinute,
	})
}

func (d *Deps) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})
}

func (d *Deps) Close() {
	var errs []error
	if d.Store != nil {
		errs = append(errs, d.Store.Close())
	}
	if d.Redis != nil {
		errs = append(errs, d.Redis.Close())
	}
	if err := errors.Join(errs...); err != nil {
		slog.Warn("close dependencies", "err", err)
	}
}
