package log

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once sync.Once
	base zerolog.Logger
)

// Configure initialises the process-wide base logger exactly once.
func Configure(level, service string) {
	once.Do(func() {
		parsed := zerolog.InfoLevel
		if level != "" {
			if l, err := zerolog.ParseLevel(level); err == nil {
				parsed = l
			}
		}
		zerolog.SetGlobalLevel(parsed)
		zerolog.TimeFieldFormat = time.RFC3339

		base = zerolog.New(os.Stdout).With().
			Timestamp().
			Str("service", service).
			Logger()
	})
}

// WithComponent returns a child logger annotated with a component name.
func WithComponent(component string) zerolog.Logger {
	Configure("", "videoflix")
	return base.With().Str("component", component).Logger()
}
