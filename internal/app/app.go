// Package app wires configuration into a ready-to-run scheduler.
package app

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"

	"github.com/sgcarstrends/sgcarstrends-sub001/internal/cache"
	"github.com/sgcarstrends/sgcarstrends-sub001/internal/checksum"
	"github.com/sgcarstrends/sgcarstrends-sub001/internal/config"
	"github.com/sgcarstrends/sgcarstrends-sub001/internal/csvparse"
	"github.com/sgcarstrends/sgcarstrends-sub001/internal/database"
	"github.com/sgcarstrends/sgcarstrends-sub001/internal/fetcher"
	"github.com/sgcarstrends/sgcarstrends-sub001/internal/logger"
	"github.com/sgcarstrends/sgcarstrends-sub001/internal/migrations"
	"github.com/sgcarstrends/sgcarstrends-sub001/internal/repositories"
	"github.com/sgcarstrends/sgcarstrends-sub001/internal/scheduler"
	"github.com/sgcarstrends/sgcarstrends-sub001/internal/tables"
	"github.com/sgcarstrends/sgcarstrends-sub001/internal/updater"
)

// App holds the long-lived resources of a process.
type App struct {
	Config    *config.Config
	DB        *bun.DB
	Redis     *redis.Client
	Runner    *scheduler.Runner
	Schedules map[string]string

	log zerolog.Logger
}

// New opens the database and optional Redis, runs migrations when asked,
// and registers one updater per configured table.
func New(ctx context.Context, cfg *config.Config, migrate bool) (*App, error) {
	log := logger.Get()
	a := &App{Config: cfg, Schedules: make(map[string]string), log: log}

	db, err := database.NewDB(cfg.Database)
	if err != nil {
		return nil, err
	}
	a.DB = db

	if migrate {
		if err := migrations.RunMigrations(ctx, db); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	var checksums updater.ChecksumStore = checksum.NewDBStore(db)
	var invalidator updater.CacheInvalidator = cache.Noop{}
	if cfg.Redis.Addr != "" {
		a.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		checksums = checksum.NewRedisStore(a.Redis, cfg.Redis.KeyPrefix)
		invalidator = cache.NewRedisInvalidator(a.Redis, cfg.Redis.KeyPrefix+cfg.Redis.CachePrefix)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Using Redis for checksums and cache invalidation")
	}

	opts := []fetcher.Option{
		fetcher.WithTimeout(cfg.Fetcher.Timeout),
		fetcher.WithUserAgent(cfg.Fetcher.UserAgent),
		fetcher.WithLimits(cfg.Fetcher.Limits()),
	}
	if s3Client, err := newS3(cfg.S3); err != nil {
		_ = a.Close()
		return nil, err
	} else if s3Client != nil {
		opts = append(opts, fetcher.WithS3(s3Client))
	}
	f := fetcher.New(cfg.Fetcher.WorkDir, opts...)

	tcs := tables.Configured(cfg)
	descs, err := tables.BuildAll(tcs)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	store := repositories.NewTableStore(db)
	a.Runner = scheduler.NewRunner(repositories.NewRunStore(db), log.With().Str("component", "scheduler").Logger())
	for i, desc := range descs {
		u, err := updater.New(desc, f, csvparse.Parser{}, checksums, store,
			updater.WithInvalidator(invalidator),
			updater.WithLogger(log),
		)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.Runner.Register(desc.Table, u)
		a.Schedules[desc.Table] = tcs[i].Schedule
	}
	return a, nil
}

// Close releases the database and Redis connections.
func (a *App) Close() error {
	var result error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

// newS3 returns nil unless S3 sources are configured.
func newS3(cfg config.S3Config) (*s3.S3, error) {
	if !cfg.Enabled && cfg.Endpoint == "" && cfg.AccessKey == "" {
		return nil, nil
	}
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return s3.New(sess), nil
}
