// Package alert reports internal errors to the Sentinel alerting service.
package alert

import "context"

// Provider sends error alerts to a monitoring system.
type Provider interface {
	// SendError sends an alert for an error with the given code and message.
	// operation names the use case that failed; details carries extra context.
	SendError(ctx context.Context, errCode, msg, operation string, details map[string]string) error
}

// NewProvider returns a Sentinel provider, or a no-op provider when cfg.Disable is set.
func NewProvider(cfg Config, serviceName, serviceVersion string) (Provider, error) {
	if cfg.Disable {
		return noOpProvider{}, nil
	}
	return NewSentinelProvider(cfg, serviceName, serviceVersion)
}

type noOpProvider struct{}

func (noOpProvider) SendError(context.Context, string, string, string, map[string]string) error {
	return nil
}
