package api

import (
	"time"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/pkg/logger"
)

const (
	defaultSubmitPerMinute = 120
	defaultSubmitBurst     = 20
)

type serverConfig struct {
	submitPerMinute int
	submitBurst     int
	now             func() time.Time
	log             logger.Logger
}

func defaultServerConfig() serverConfig {
	return serverConfig{
		submitPerMinute: defaultSubmitPerMinute,
		submitBurst:     defaultSubmitBurst,
		now:             time.Now,
		log:             logger.Nop(),
	}
}

// Option applies a configuration option to the Server.
type Option func(*serverConfig)

// WithSubmitRate throttles POST /reports per client address. A
// non-positive rate disables throttling.
func WithSubmitRate(perMinute, burst int) Option {
	return func(c *serverConfig) {
		c.submitPerMinute = perMinute
		if burst > 0 {
			c.submitBurst = burst
		}
	}
}

// WithClock overrides the time used for download filenames.
func WithClock(now func() time.Time) Option {
	return func(c *serverConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger for streaming handlers.
func WithLogger(l logger.Logger) Option {
	return func(c *serverConfig) {
		if l != nil {
			c.log = l
		}
	}
}
