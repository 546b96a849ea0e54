package feed

import "github.com/farpkdpasirmas-lang/MedSafetyPro/pkg/logger"

// Option applies a configuration option to the Feed.
type Option func(*Feed)

// WithQueueSize bounds pending change notifications.
func WithQueueSize(n int) Option {
	return func(f *Feed) {
		if n > 0 {
			f.queueSize = n
		}
	}
}

// WithLogger sets the logger for stream failures.
func WithLogger(l logger.Logger) Option {
	return func(f *Feed) {
		if l != nil {
			f.log = l
		}
	}
}
