package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ConfigurarLogger sets the global zerolog logger: pretty console output in
// development, JSON with a service field in production.
func ConfigurarLogger(env, servicio string) {
	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	level := zerolog.DebugLevel
	if env == "production" {
		out = os.Stderr
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = zerolog.New(out).With().Timestamp().Str("service", servicio).Logger()
}
