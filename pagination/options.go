package pagination

const (
	defaultPageSize = 20
	defaultMaxSize  = 100
)

// Options configures pagination behavior.
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
	// FixedPageSize ignores the requested size and always uses DefaultPageSize.
	FixedPageSize bool
}

type Option func(*Options)

func WithMaxPageSize(maxSize int) Option {
	return func(o *Options) {
		o.MaxPageSize = maxSize
	}
}

// WithFixedPageSize pins every page to size.
func WithFixedPageSize(size int) Option {
	return func(o *Options) {
		o.DefaultPageSize = size
		o.FixedPageSize = true
	}
}

func defaultOptions() Options {
	return Options{DefaultPageSize: defaultPageSize, MaxPageSize: defaultMaxSize}
}
