package observability

import (
	"log/slog"

	"github.com/couchcryptid/hydro-telegram-etl/internal/config"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// NewLogger builds the service logger from LOG_LEVEL and LOG_FORMAT. The
// shared constructor installs it as the slog default; the service attribute
// is added on top and installed again so package-level slog calls carry it.
func NewLogger(cfg *config.Config) *slog.Logger {
	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat).With("service", "hydro-telegram-etl")
	slog.SetDefault(logger)
	return logger
}
