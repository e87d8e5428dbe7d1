package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"asset-lifecycle-service/internal/adapters/secondary/objectstore"
	"asset-lifecycle-service/internal/adapters/secondary/postgres"
	promrecorder "asset-lifecycle-service/internal/adapters/secondary/prometheus"
	"asset-lifecycle-service/internal/adapters/secondary/redisstore"
	"asset-lifecycle-service/internal/adapters/secondary/review"
	"asset-lifecycle-service/internal/config"
	"asset-lifecycle-service/internal/core/ports/output"
	"asset-lifecycle-service/internal/core/services"
)

// App holds the connections and services shared by the server and the CLI.
type App struct {
	Config   *config.Config
	Pool     *pgxpool.Pool
	ReadPool *pgxpool.Pool
	Redis    *redis.Client

	Assets    *services.AssetService
	Versions  *services.VersionStore
	Revisions *services.RevisionTracker
	Gate      *services.QAGate
	Trigger   *services.AutoTrigger
	Uploads   *services.UploadOrchestrator
}

// New connects to every backing store and wires the services. A nil reg
// disables metrics.
func New(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*App, error) {
	app := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	pool, err := openPool(ctx, cfg.Database.DSN(), cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	app.Pool = pool
	log.Info("database connection established")

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			return nil, err
		}
		log.Info("database schema applied")
	}

	read := pool
	if cfg.Database.ReadURL != "" {
		if read, err = openPool(ctx, cfg.Database.ReadURL, cfg.Database); err != nil {
			return nil, fmt.Errorf("open read replica: %w", err)
		}
		app.ReadPool = read
		log.Info("read replica connection established")
	}

	store, err := objectstore.NewMinioStore(ctx, objectstore.Config{
		Endpoint:      cfg.Storage.Endpoint,
		AccessKey:     cfg.Storage.AccessKey,
		SecretKey:     cfg.Storage.SecretKey,
		Bucket:        cfg.Storage.Bucket,
		UseSSL:        cfg.Storage.UseSSL,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("open object store: %w", err)
	}
	log.WithField("bucket", cfg.Storage.Bucket).Info("object store ready")

	// Redis (Optional - based on config)
	var (
		lock   ports.TriggerLock
		events ports.EventPublisher
	)
	if cfg.Redis.Enabled {
		rdb, err := redisstore.Connect(ctx, redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		app.Redis = rdb
		lock = redisstore.NewTriggerLock(rdb, cfg.Redis.LockPrefix, instanceName())
		if cfg.Events.Enabled {
			events = redisstore.NewEventPublisher(rdb, cfg.Events.ListKey)
		}
		log.Info("redis trigger lock initialized")
	} else {
		log.Info("redis disabled, using in-process trigger lock")
		if cfg.Events.Enabled {
			log.Warn("events need redis, event publishing disabled")
		}
	}

	var metrics ports.Recorder = ports.NopRecorder{}
	if reg != nil {
		metrics = promrecorder.NewRecorder(reg)
	}

	reviewEngine := review.NewClient(&cfg.Review)
	if !cfg.Review.Enabled {
		log.Info("review engine disabled")
	}

	// Secondary Adapters (Output Ports - Repositories)
	assetRepo := postgres.NewAssetRepository(pool, read)
	feedbackRepo := postgres.NewFeedbackRepository(pool)
	versionRepo := postgres.NewArtifactVersionRepository(pool)
	historyRepo := postgres.NewStatusHistoryRepository(pool)
	assignmentRepo := postgres.NewAssignmentRepository(pool, cfg.Database.AssignmentRole)

	// Core Services (Application Layer)
	app.Assets = services.NewAssetService(assetRepo, historyRepo)
	app.Versions = services.NewVersionStore(store, versionRepo, assetRepo, metrics)
	verifier := services.NewConsistencyVerifier(assetRepo, services.ConsistencyConfig{
		BaseDelay:   cfg.Consistency.BaseDelay,
		Factor:      cfg.Consistency.Factor,
		MaxDelay:    cfg.Consistency.MaxDelay,
		MaxAttempts: cfg.Consistency.MaxAttempts,
		MarkerTTL:   cfg.Consistency.MarkerTTL,
	}, metrics)
	app.Revisions = services.NewRevisionTracker(assetRepo, feedbackRepo)
	app.Gate = services.NewQAGate(assetRepo, reviewEngine, historyRepo, assignmentRepo, events, metrics)
	app.Trigger = services.NewAutoTrigger(assetRepo, store, app.Gate, lock, metrics, services.AutoTriggerConfig{
		SettleDelay:   cfg.AutoTrigger.SettleDelay,
		ProbeOnArm:    cfg.AutoTrigger.ProbeOnArm,
		LockTTL:       cfg.AutoTrigger.LockTTL,
		MaxLagRetries: cfg.AutoTrigger.MaxLagRetries,
	})
	app.Uploads = services.NewUploadOrchestrator(assetRepo, store, app.Versions, verifier, app.Revisions, app.Gate, app.Trigger, metrics, services.UploadLimits{
		ModelMaxBytes:    cfg.Upload.ModelMaxBytes,
		SourceMaxBytes:   cfg.Upload.SourceMaxBytes,
		ModelExtensions:  cfg.Upload.ModelExtensions,
		SourceExtensions: cfg.Upload.SourceExtensions,
	})

	ok = true
	return app, nil
}

// Close stops pending auto reviews before releasing connections.
func (a *App) Close() {
	if a.Trigger != nil {
		a.Trigger.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.WithError(err).Warn("close redis")
		}
	}
	if a.ReadPool != nil {
		a.ReadPool.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}

func openPool(ctx context.Context, dsn string, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MinConns = cfg.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create db pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

func instanceName() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

// InitLogger applies the logger section of cfg to the global logrus logger.
func InitLogger(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Logger.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
