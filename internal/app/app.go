// Package app assembles the pipeline components from configuration. It is
// the single place construction order and wiring live, so commands stay thin.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/gradstats/admissions-crawler/internal/config"
	"github.com/gradstats/admissions-crawler/internal/crawler"
	"github.com/gradstats/admissions-crawler/internal/database"
	"github.com/gradstats/admissions-crawler/internal/job"
	"github.com/gradstats/admissions-crawler/internal/loader"
	"github.com/gradstats/admissions-crawler/internal/logging"
	"github.com/gradstats/admissions-crawler/internal/progress"
	"github.com/gradstats/admissions-crawler/internal/progress/sinks"
	"github.com/gradstats/admissions-crawler/internal/query"
	"github.com/gradstats/admissions-crawler/internal/robots"
	"github.com/gradstats/admissions-crawler/internal/scrape"
	"github.com/gradstats/admissions-crawler/internal/standardize"
)

// App holds the long-lived services shared by every command.
type App struct {
	Cfg    config.Config
	Logger *zap.Logger
	DB     *database.Manager
	Hub    *progress.Hub

	localSrv *database.LocalServer
}

// New loads configuration and builds the shared services. Database
// connections are deferred until a command calls Pool.
func New(cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	manager := database.NewManager(database.Config{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		Name:     cfg.DB.Name,
		DataDir:  cfg.DB.DataDir,
		MaxConns: int32(cfg.DB.MaxConns),
	}, logger.Named("database"))

	hub := progress.NewHub(
		progress.HubConfig{Logger: logger.Named("progress")},
		sinks.NewLog(logger.Named("progress")),
		sinks.NewPrometheus(prometheus.DefaultRegisterer),
	)

	return &App{Cfg: cfg, Logger: logger, DB: manager, Hub: hub}, nil
}

// Close flushes the progress hub and releases database connections.
func (a *App) Close(ctx context.Context) {
	if err := a.Hub.Close(ctx); err != nil {
		a.Logger.Warn("progress hub close failed", zap.Error(err))
	}
	a.DB.Close()
	if a.localSrv != nil {
		if err := a.localSrv.Stop(); err != nil {
			a.Logger.Warn("local postgres stop failed", zap.Error(err))
		}
		a.localSrv = nil
	}
	_ = a.Logger.Sync()
}

// Pool ensures the database exists, applies the schema, and returns the
// pool. When db.data_dir is configured a developer-local Postgres is started
// first.
func (a *App) Pool(ctx context.Context) (*pgxpool.Pool, error) {
	if a.Cfg.DB.DataDir != "" && a.localSrv == nil {
		srv := database.NewLocalServer(database.Config{
			Host:    a.Cfg.DB.Host,
			Port:    a.Cfg.DB.Port,
			User:    a.Cfg.DB.User,
			DataDir: a.Cfg.DB.DataDir,
		}, a.Logger.Named("localpg"))
		if err := srv.Start(ctx); err != nil {
			return nil, fmt.Errorf("start local postgres: %w", err)
		}
		a.localSrv = srv
	}
	return a.DB.EnsureReady(ctx)
}

// Crawler builds the policy-gated listing crawler.
func (a *App) Crawler() (*crawler.Engine, error) {
	crawlCfg := crawler.Config{
		BaseURL:        a.Cfg.Crawler.BaseURL,
		UserAgent:      a.Cfg.Crawler.UserAgent,
		RequestTimeout: a.Cfg.FetchTimeout(),
		Delay:          a.Cfg.FetchDelay(),
		MaxRetries:     a.Cfg.Crawler.MaxRetries,
		BackoffInitial: a.Cfg.BackoffInitial(),
		BackoffMax:     a.Cfg.BackoffMax(),
	}
	if err := crawlCfg.Validate(); err != nil {
		return nil, fmt.Errorf("crawler config: %w", err)
	}
	fetcher, err := crawler.NewCollyFetcher(crawlCfg, a.Logger.Named("fetcher"))
	if err != nil {
		return nil, fmt.Errorf("init fetcher: %w", err)
	}
	policy := robots.NewChecker(
		&http.Client{Timeout: a.Cfg.FetchTimeout()},
		a.Cfg.Crawler.UserAgent,
		a.Logger.Named("robots"),
	)
	var retry crawler.RetryPolicy
	if a.Cfg.Crawler.MaxRetries > 0 {
		retry = crawler.NewExponentialRetryPolicy(
			a.Cfg.Crawler.MaxRetries,
			a.Cfg.BackoffInitial(),
			a.Cfg.BackoffMax(),
		)
	}
	return crawler.NewEngine(crawlCfg, fetcher, policy, retry, a.Logger.Named("crawler")), nil
}

// Parser builds the listing-page parser.
func (a *App) Parser() *scrape.PageParser {
	return scrape.NewPageParser(a.Logger.Named("parser"))
}

// Standardizer builds the three-tier name standardizer. The model tier is
// only present when a model URL is configured.
func (a *App) Standardizer() *standardize.Standardizer {
	var model standardize.ModelClient
	if a.Cfg.Standardizer.ModelURL != "" {
		model = standardize.NewRestyModel(
			a.Cfg.Standardizer.ModelURL,
			a.Cfg.ModelTimeout(),
			a.Logger.Named("model"),
		)
	}
	return standardize.New(
		standardize.DefaultCanon(),
		model,
		a.Cfg.Standardizer.FuzzyThreshold,
		a.Logger.Named("standardize"),
	)
}

// Loader builds the database loader over the given pool.
func (a *App) Loader(pool *pgxpool.Pool) *loader.Loader {
	return loader.NewLoader(pool,
		loader.Config{BatchSize: a.Cfg.Loader.BatchSize},
		a.Hub,
		a.Logger.Named("loader"),
	)
}

// Query builds the analytical query engine over the given pool.
func (a *App) Query(pool *pgxpool.Pool) *query.Engine {
	return query.NewEngine(pool, a.Logger.Named("query"))
}

// Runner builds the single-flight refresh runner over the given pool.
func (a *App) Runner(pool *pgxpool.Pool) (*job.Runner, error) {
	engine, err := a.Crawler()
	if err != nil {
		return nil, err
	}
	pipeline := job.NewPipeline(
		engine,
		a.Parser(),
		a.Standardizer(),
		a.Loader(pool),
		a.Hub,
		a.Logger.Named("pipeline"),
	)
	opts := job.Options{
		StartPage: a.Cfg.Crawler.StartPage,
		PageLimit: a.Cfg.Crawler.PageLimit,
		Workers:   a.Cfg.Standardizer.Workers,
	}
	return job.NewRunner(pipeline, opts, a.Cfg.JobTimeout(), a.Logger.Named("runner")), nil
}
