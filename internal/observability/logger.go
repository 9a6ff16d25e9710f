package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ComponentLogger derives a child of the global logger tagged with the
// instrument name, for components that log on their own goroutines.
func ComponentLogger(component, instrument string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Str("instrument", instrument).Logger()
}
