package repository

import (
	"time"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/pkg/logger"
)

// Option applies a configuration option to the Gateway.
type Option func(*Gateway)

// WithClock overrides the time source used for createdAt/timestamp/updatedAt.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

// WithIDGenerator overrides how new document ids are minted.
func WithIDGenerator(newID func() string) Option {
	return func(g *Gateway) {
		if newID != nil {
			g.newID = newID
		}
	}
}

// WithLogger sets the logger used for skipped documents and backend notes.
func WithLogger(l logger.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.log = l
		}
	}
}
