package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

//nolint:gochecknoglobals // global alert provider singleton
var (
	global   atomic.Value // stores Provider
	setOnce  sync.Once
	initOnce sync.Once
)

// holder keeps the stored type stable across provider implementations.
type holder struct{ p Provider }

// SetGlobal configures the global alert provider. It fails when the provider
// cannot be created or when called more than once.
func SetGlobal(cfg Config, serviceName, serviceVersion string) error {
	err := errors.New("[alert]: SetGlobal can only be called once")

	setOnce.Do(func() {
		// Prevent lazy initialization from happening after this
		initOnce.Do(func() {})

		provider, providerErr := NewProvider(cfg, serviceName, serviceVersion)
		if providerErr != nil {
			global.Store(holder{noOpProvider{}})
			err = fmt.Errorf("[alert]: failed to initialize global alert provider: %w", providerErr)
			return
		}
		global.Store(holder{provider})
		err = nil
	})

	return err
}

// SendError sends an alert through the global provider, a no-op until SetGlobal is called.
func SendError(ctx context.Context, errCode, msg, operation string, details map[string]string) error {
	return getGlobal().SendError(ctx, errCode, msg, operation, details)
}

func getGlobal() Provider {
	initOnce.Do(func() {
		global.Store(holder{noOpProvider{}})
	})

	h, ok := global.Load().(holder)
	if !ok {
		panic("[alert]: global contains invalid type")
	}
	return h.p
}
