package cfgloader

// Options holds configuration options for Load.
type Options struct {
	// Silent disables printing of the loaded config.
	Silent bool
	// Dir is the directory holding the per-environment yaml files. Default is ./config.
	Dir string
}

// Option is a functional option for configuring Load behavior.
type Option func(*Options)

// WithSilent disables printing of the loaded config.
func WithSilent() Option {
	return func(o *Options) {
		o.Silent = true
	}
}

// WithDir overrides the directory the yaml files are read from.
func WithDir(dir string) Option {
	return func(o *Options) {
		o.Dir = dir
	}
}
