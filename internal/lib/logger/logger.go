// Package logger собирает slog-логгер под окружение сервиса.
package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"

	"github.com/linemk/farm-market/internal/lib/logger/handlers/slogpretty"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// уровни для JSON-окружений; неизвестное окружение пишет как prod
var envLevels = map[string]slog.Level{
	EnvDev:  slog.LevelDebug,
	EnvProd: slog.LevelInfo,
}

// SetupLogger: local - цветной вывод в консоль, остальные окружения - JSON в stdout
func SetupLogger(env string) *slog.Logger {
	return newLogger(env, os.Stdout)
}

func newLogger(env string, out io.Writer) *slog.Logger {
	if env == EnvLocal {
		color.NoColor = false
		opts := slogpretty.PrettyHandlerOptions{
			SlogOpts: &slog.HandlerOptions{Level: slog.LevelDebug},
		}
		return slog.New(opts.NewPrettyHandler(out))
	}

	level, ok := envLevels[env]
	if !ok {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))
}

// Discard - логгер, который ничего не пишет. Нужен тестам и утилитам
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Err - короткая запись атрибута ошибки
func Err(err error) slog.Attr {
	return slog.Any("error", err)
}
