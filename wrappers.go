package inject

import (
	"reflect"
)

// Lazy defers the resolution of T until Value is first called. Depending on
// *Lazy[T] instead of T breaks construction cycles and postpones expensive
// construction. Lazy values are produced by the injector for any
// registered T; the zero value is unbound.
//
// Example:
//
//	func NewMailer(transport *inject.Lazy[Transport]) *Mailer {
//	    return &Mailer{transport: transport}
//	}
//
//	func (m *Mailer) Send(msg Message) error {
//	    t, err := m.transport.Value()
//	    if err != nil {
//	        return err
//	    }
//	    return t.Deliver(msg)
//	}
type Lazy[T any] struct {
	holder  lazyValue
	resolve func() (any, error)
}

// Value resolves T on first use and returns the same value afterwards.
// It is safe for concurrent use. A failed resolution is retried on the
// next call.
func (l *Lazy[T]) Value() (T, error) {
	if l == nil || l.resolve == nil {
		var zero T
		return zero, ErrWrapperUnbound
	}

	v, err := l.holder.get(l.resolve)
	if err != nil {
		var zero T
		return zero, err
	}

	return castTo[T](v, "lazy value")
}

// IsValueCreated reports whether Value has produced the value.
func (l *Lazy[T]) IsValueCreated() bool {
	if l == nil {
		return false
	}
	_, ok := l.holder.peek()
	return ok
}

func (l *Lazy[T]) lazyContract() reflect.Type {
	return reflect.TypeFor[T]()
}

func (l *Lazy[T]) bindLazy(resolve func() (any, error)) {
	l.resolve = resolve
}

// ExportFactory creates instances of one registration of T on demand and
// exposes that registration's metadata. Created instances follow the
// registration's lifetime: a Transient registration yields a new instance
// per Create.
//
// For a multiple registration of T, []*ExportFactory[T] holds one factory
// per registration, in registration order.
type ExportFactory[T any] struct {
	create   func() (any, error)
	metadata Metadata
}

// Create produces an instance of the wrapped registration.
func (f *ExportFactory[T]) Create() (T, error) {
	if f == nil || f.create == nil {
		var zero T
		return zero, ErrWrapperUnbound
	}

	v, err := f.create()
	if err != nil {
		var zero T
		return zero, err
	}

	return castTo[T](v, "export factory")
}

// Metadata returns the metadata of the wrapped registration.
func (f *ExportFactory[T]) Metadata() Metadata {
	if f == nil {
		return Metadata{}
	}
	return f.metadata
}

func (f *ExportFactory[T]) exportedContract() reflect.Type {
	return reflect.TypeFor[T]()
}

func (f *ExportFactory[T]) bindExport(create func() (any, error), metadata Metadata) {
	f.create = create
	f.metadata = metadata
}

// lazyBinder is implemented by *Lazy[T] for every T.
type lazyBinder interface {
	lazyContract() reflect.Type
	bindLazy(resolve func() (any, error))
}

// exportBinder is implemented by *ExportFactory[T] for every T.
type exportBinder interface {
	exportedContract() reflect.Type
	bindExport(create func() (any, error), metadata Metadata)
}

var (
	lazyBinderType   = reflect.TypeFor[lazyBinder]()
	exportBinderType = reflect.TypeFor[exportBinder]()
)

// isDeferredWrapper reports whether t is *Lazy[X] or *ExportFactory[X].
func isDeferredWrapper(t reflect.Type) bool {
	return t != nil && (t.Implements(lazyBinderType) || t.Implements(exportBinderType))
}

// wrappedContract returns X for *Lazy[X] and *ExportFactory[X].
func wrappedContract(t reflect.Type) (reflect.Type, bool) {
	switch {
	case t == nil || t.Kind() != reflect.Pointer:
		return nil, false
	case t.Implements(lazyBinderType):
		return reflect.New(t.Elem()).Interface().(lazyBinder).lazyContract(), true
	case t.Implements(exportBinderType):
		return reflect.New(t.Elem()).Interface().(exportBinder).exportedContract(), true
	default:
		return nil, false
	}
}

// castTo converts a resolved value to T. A nil value yields the zero T.
func castTo[T any](v any, context string) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}

	typed, ok := v.(T)
	if !ok {
		return zero, &TypeMismatchError{
			Expected: reflect.TypeFor[T](),
			Actual:   reflect.TypeOf(v),
			Context:  context,
		}
	}
	return typed, nil
}
