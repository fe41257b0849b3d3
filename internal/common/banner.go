package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and the resolved runtime shape
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.PrintSimple("EarningsEar", GetVersion())

	logger.Info().
		Str("version", GetFullVersion()).
		Str("environment", config.Environment).
		Str("storage", config.Storage.Type).
		Str("llm_provider", string(config.LLM.DefaultProvider)).
		Str("browser", config.Browser.Engine).
		Msg("EarningsEar starting")
}
