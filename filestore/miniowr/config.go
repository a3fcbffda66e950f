package miniowr

// Config defines the MinIO connection and bucket.
type Config struct {
	// Endpoint is the server address, e.g. "localhost:9000".
	Endpoint  string `yaml:"endpoint"   validate:"required"`
	AccessKey string `yaml:"access_key" validate:"required"`
	SecretKey string `yaml:"secret_key" validate:"required" mask:"true"`
	Bucket    string `yaml:"bucket"     validate:"required"`
	UseSSL    bool   `yaml:"use_ssl"    default:"false"`
}
