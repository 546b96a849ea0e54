package dashboard

import "github.com/farpkdpasirmas-lang/MedSafetyPro/pkg/logger"

// Option applies a configuration option to the Controller.
type Option func(*Controller)

// WithPublisher sets where rendered views are sent.
func WithPublisher(p Publisher) Option {
	return func(c *Controller) {
		c.publisher = p
	}
}

// WithLogger sets the controller logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}
