package server

import (
	"net"
	"strconv"
	"time"
)

// Config configures the HTTP server.
type Config struct {
	// HideErrorDetails drops trace and details from error responses.
	HideErrorDetails bool `yaml:"hide_error_details"`

	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required"`

	ReadTimeout  time.Duration `yaml:"read_timeout"  validate:"required" default:"15s"`
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"required" default:"15s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"  validate:"required" default:"120s"`

	// HandleTimeout bounds the context of a single request.
	HandleTimeout time.Duration `yaml:"handle_timeout" validate:"required" default:"30s"`

	// BodyLimit is the maximum request body size in bytes. Uploads arrive
	// base64 encoded inside JSON, so this is roughly 4/3 of the largest file.
	BodyLimit int `yaml:"body_limit" validate:"required" default:"33554432"`
}

// Address returns the listen address in the form "host:port".
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
