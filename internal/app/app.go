package app

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/linemk/farm-market/internal/config"
	"github.com/linemk/farm-market/internal/lib/logger"
)

const pingTimeout = 5 * time.Second

type App struct {
	Config *config.Config
	Logger *slog.Logger
	DB     *sql.DB
	// Redis равен nil, если кеш не настроен
	Redis *redis.Client
}

// NewApp создаёт новый экземпляр App: подключение к БД обязательно, к redis - нет
func NewApp(log *slog.Logger, cfg *config.Config) (*App, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxOpenConns / 2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	app := &App{
		Config: cfg,
		Logger: log,
		DB:     db,
	}

	if cfg.Redis.Address != "" {
		app.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		// недоступный redis не мешает старту: кеш лишь ускоряет чтение
		if err := app.Redis.Ping(ctx).Err(); err != nil {
			log.Warn("redis is unavailable, category cache will miss", slog.String("address", cfg.Redis.Address), logger.Err(err))
		}
	}

	return app, nil
}

// Close закрывает соединения приложения
func (a *App) Close() error {
	var redisErr error
	if a.Redis != nil {
		redisErr = a.Redis.Close()
	}
	if err := a.DB.Close(); err != nil {
		return errors.Wrap(err, "failed to close database")
	}
	return errors.Wrap(redisErr, "failed to close redis")
}
