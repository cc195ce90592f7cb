// internal/workers/token/token-status/config.go
package tokenstatus

import (
	"time"

	"franchise-ledger/internal/common/config"
)

type Config struct {
	Enabled       bool
	MaxJobsActive int
	Timeout       time.Duration
}

// LoadConfig reads the worker block of taskType (activate-token or pause-token).
func LoadConfig(app *config.Config, taskType string) *Config {
	wc := config.GetWorkerConfig(app, taskType)
	return &Config{
		Enabled:       wc.Enabled,
		MaxJobsActive: wc.MaxJobsActive,
		Timeout:       config.GetDuration(wc.Timeout),
	}
}
