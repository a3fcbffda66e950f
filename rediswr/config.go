package rediswr

// Config defines the configuration options for Redis connections.
type Config struct {
	// Addrs is a comma separated list of "host:port" addresses.
	Addrs string `yaml:"addrs" validate:"required"`

	Username string `yaml:"username"`
	Password string `yaml:"password" mask:"true"`

	// DB selects the logical database. Ignored in cluster mode.
	DB int `yaml:"db" default:"0"`

	// IsClusterMode indicates whether the addresses point to a Redis cluster.
	IsClusterMode bool `yaml:"is_cluster_mode"`
}
