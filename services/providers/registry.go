package providers

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrUnknownProvider is returned when no builder is registered for a
	// provider identifier.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrBuilderRegistered is returned when registering a duplicate builder.
	ErrBuilderRegistered = errors.New("provider builder already registered")
)

// Builder constructs an adapter for one provider family from its config.
type Builder func(cfg Config, logger *zap.Logger) (Adapter, error)

// Factory maps provider identifiers to adapter builders. It is the only
// component aware of concrete provider types; callers work against the
// Adapter interface.
type Factory struct {
	mu       sync.RWMutex
	builders map[string]Builder
	logger   *zap.Logger
}

// NewFactory creates an empty factory. Builders are registered by the
// application wiring.
func NewFactory(logger *zap.Logger) *Factory {
	return &Factory{
		builders: make(map[string]Builder),
		logger:   logger,
	}
}

// Register adds a builder for a provider identifier.
func (f *Factory) Register(name string, builder Builder) error {
	if name == "" {
		return errors.New("provider name cannot be empty")
	}
	if builder == nil {
		return errors.New("provider builder cannot be nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.builders[name]; exists {
		return fmt.Errorf("%w: %s", ErrBuilderRegistered, name)
	}
	f.builders[name] = builder
	return nil
}

// Create constructs a fresh adapter instance for the configured provider.
// Each instance exclusively owns its limiter and breaker.
func (f *Factory) Create(cfg Config) (Adapter, error) {
	f.mu.RLock()
	builder, exists := f.builders[cfg.Provider]
	f.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}

	adapter, err := builder(cfg, f.logger.With(zap.String("provider", cfg.Provider)))
	if err != nil {
		return nil, fmt.Errorf("failed to build %s adapter: %w", cfg.Provider, err)
	}

	f.logger.Info("provider adapter created",
		zap.String("provider", cfg.Provider),
		zap.Any("capabilities", adapter.Capabilities()))
	return adapter, nil
}

// Providers lists the registered provider identifiers, sorted.
func (f *Factory) Providers() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(f.builders))
	for name := range f.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
