// Package promobserver exports injector resolution events as Prometheus
// metrics.
//
// Example:
//
//	registry := prometheus.NewRegistry()
//	observer, err := promobserver.New(registry, "app")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	injector, err := services.BuildWithOptions(&inject.Options{Observer: observer})
package promobserver

import (
	"errors"
	"reflect"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/junioryono/inject"
)

var _ inject.Observer = (*Observer)(nil)

// Observer implements inject.Observer with Prometheus collectors.
type Observer struct {
	Resolutions *prometheus.CounterVec
	Activations *prometheus.CounterVec
	Errors      *prometheus.CounterVec

	ResolveDuration    *prometheus.HistogramVec
	ActivationDuration *prometheus.HistogramVec
}

// New creates an Observer and registers its collectors with reg.
// A nil reg registers with prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer, namespace string) (*Observer, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	o := &Observer{
		Resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "inject",
				Name:      "resolutions_total",
				Help:      "Total number of successful top-level resolutions",
			},
			[]string{"contract"},
		),
		Activations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "inject",
				Name:      "activations_total",
				Help:      "Total number of instances produced",
			},
			[]string{"contract", "lifetime"},
		),
		Errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "inject",
				Name:      "errors_total",
				Help:      "Total number of failed top-level resolutions",
			},
			[]string{"contract", "kind"},
		),
		ResolveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "inject",
				Name:      "resolve_duration_seconds",
				Help:      "Duration of top-level resolutions in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.000001, 10, 7),
			},
			[]string{"contract"},
		),
		ActivationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "inject",
				Name:      "activation_duration_seconds",
				Help:      "Duration of instance production in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.000001, 10, 7),
			},
			[]string{"contract", "lifetime"},
		),
	}

	for _, c := range []prometheus.Collector{
		o.Resolutions,
		o.Activations,
		o.Errors,
		o.ResolveDuration,
		o.ActivationDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return o, nil
}

// OnResolved implements inject.Observer.
func (o *Observer) OnResolved(contract reflect.Type, duration time.Duration) {
	name := contractName(contract)
	o.Resolutions.WithLabelValues(name).Inc()
	o.ResolveDuration.WithLabelValues(name).Observe(duration.Seconds())
}

// OnActivated implements inject.Observer.
func (o *Observer) OnActivated(d *inject.Descriptor, duration time.Duration) {
	name := contractName(d.Contract())
	lifetime := d.Lifetime().String()
	o.Activations.WithLabelValues(name, lifetime).Inc()
	o.ActivationDuration.WithLabelValues(name, lifetime).Observe(duration.Seconds())
}

// OnError implements inject.Observer.
func (o *Observer) OnError(contract reflect.Type, err error) {
	o.Errors.WithLabelValues(contractName(contract), ErrorKind(err)).Inc()
}

// ErrorKind classifies an injector error for the kind label.
func ErrorKind(err error) string {
	var (
		notFound   *inject.ServiceNotFoundError
		circular   *inject.CircularDependencyError
		ambiguous  *inject.AmbiguousConstructorError
		missing    *inject.MissingResolvableConstructorError
		panicked   *inject.ConstructorPanicError
		invocation *inject.ConstructorInvocationError
		mismatch   *inject.ContractMismatchError
	)

	switch {
	case errors.As(err, &circular):
		return "circular_dependency"
	case errors.As(err, &ambiguous):
		return "ambiguous_constructor"
	case errors.As(err, &missing):
		return "missing_constructor"
	case errors.As(err, &panicked):
		return "panic"
	case errors.As(err, &mismatch):
		return "contract_mismatch"
	case errors.As(err, &notFound):
		return "not_found"
	case errors.As(err, &invocation):
		return "constructor_error"
	case errors.Is(err, inject.ErrScopeDisposed), errors.Is(err, inject.ErrInjectorDisposed):
		return "disposed"
	default:
		return "other"
	}
}

func contractName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
