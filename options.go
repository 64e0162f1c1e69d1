package inject

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Options configures Registry.BuildWithOptions.
//
// The serializable fields can be loaded from YAML with LoadOptions:
//
//	validateOnBuild: true
//	eagerSingletons: false
//	disposeTimeout: 5s
type Options struct {
	// ValidateOnBuild selects every constructor and checks the dependency
	// graph for cycles and singleton-to-scoped captive dependencies when
	// the injector is built, instead of failing at first activation.
	ValidateOnBuild bool `yaml:"validateOnBuild"`

	// EagerSingletons constructs every explicitly registered singleton at
	// build time, in dependency order. It implies ValidateOnBuild.
	EagerSingletons bool `yaml:"eagerSingletons"`

	// DisposeTimeout bounds each Close(ctx) call of DisposableWithContext
	// instances. Zero means no timeout.
	DisposeTimeout time.Duration `yaml:"disposeTimeout"`

	// Logger receives debug events for activation and scope lifecycle.
	// Defaults to a no-op logger.
	Logger *zap.Logger `yaml:"-"`

	// Observer is notified of resolutions, activations and errors.
	Observer Observer `yaml:"-"`
}

// DefaultOptions returns the options Build uses.
func DefaultOptions() *Options {
	return &Options{
		Logger:   zap.NewNop(),
		Observer: NopObserver(),
	}
}

// LoadOptions parses options from YAML. Fields missing from data keep
// their defaults.
func LoadOptions(data []byte) (*Options, error) {
	options := DefaultOptions()
	if err := yaml.Unmarshal(data, options); err != nil {
		return nil, fmt.Errorf("parse injector options: %w", err)
	}

	if options.DisposeTimeout < 0 {
		return nil, fmt.Errorf("parse injector options: disposeTimeout must not be negative, got %s", options.DisposeTimeout)
	}

	return options, nil
}

// withDefaults returns a copy of o with unset fields defaulted.
func (o *Options) withDefaults() *Options {
	result := DefaultOptions()
	if o == nil {
		return result
	}

	*result = *o
	if result.Logger == nil {
		result.Logger = zap.NewNop()
	}
	if result.Observer == nil {
		result.Observer = NopObserver()
	}
	return result
}
