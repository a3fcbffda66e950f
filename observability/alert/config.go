package alert

import "time"

// Config defines how to reach the Sentinel service.
type Config struct {
	// Disable turns alert sending off entirely.
	Disable bool `yaml:"disable" default:"false"`

	SentinelHost string `yaml:"sentinel_host" validate:"required_if=Disable false"`
	SentinelPort int    `yaml:"sentinel_port" validate:"required_if=Disable false"`

	// SendTimeout bounds a single SendError call.
	SendTimeout time.Duration `yaml:"send_timeout" default:"3s"`
}
