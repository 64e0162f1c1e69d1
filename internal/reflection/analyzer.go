package reflection

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

var errType = reflect.TypeOf((*error)(nil)).Elem()

// Analyzer performs reflection-based analysis of constructor functions.
// It caches analysis results per function pointer.
type Analyzer struct {
	mu    sync.RWMutex
	cache map[uintptr]*ConstructorInfo
}

// ConstructorInfo contains analyzed information about a constructor function.
type ConstructorInfo struct {
	Type           reflect.Type
	Parameters     []ParameterInfo
	Result         reflect.Type // The produced type (first return value)
	HasErrorReturn bool         // Returns error as second value
}

// ParameterInfo describes a constructor parameter.
type ParameterInfo struct {
	Type     reflect.Type
	Index    int
	IsSlice  bool
	ElemType reflect.Type // Element type if slice
}

// New creates a new Analyzer.
func New() *Analyzer {
	return &Analyzer{
		cache: make(map[uintptr]*ConstructorInfo),
	}
}

// Analyze analyzes a constructor function. Accepted shapes are
// func(deps...) T and func(deps...) (T, error).
//
// Closures created from the same function literal share a cache entry, so
// the returned info describes the signature only; callers keep their own
// reflect.Value to invoke.
func (a *Analyzer) Analyze(constructor any) (*ConstructorInfo, error) {
	if constructor == nil {
		return nil, fmt.Errorf("constructor cannot be nil")
	}

	val := reflect.ValueOf(constructor)
	if val.Kind() != reflect.Func {
		return nil, fmt.Errorf("constructor must be a function, got %v", val.Type())
	}

	if val.IsNil() {
		return nil, fmt.Errorf("constructor cannot be nil")
	}

	// Different functions with the same signature are cached separately
	cacheKey := val.Pointer()

	a.mu.RLock()
	if cached, ok := a.cache[cacheKey]; ok && cached.Type == val.Type() {
		a.mu.RUnlock()
		return cached, nil
	}
	a.mu.RUnlock()

	typ := val.Type()
	if typ.IsVariadic() {
		return nil, fmt.Errorf("variadic constructor %v is not supported", typ)
	}

	info := &ConstructorInfo{Type: typ}

	switch typ.NumOut() {
	case 1:
		info.Result = typ.Out(0)
	case 2:
		if !typ.Out(1).Implements(errType) {
			return nil, fmt.Errorf("second return value of %v must be error", typ)
		}
		info.Result = typ.Out(0)
		info.HasErrorReturn = true
	default:
		return nil, fmt.Errorf("constructor %v must return T or (T, error)", typ)
	}

	if IsErrorType(info.Result) {
		return nil, fmt.Errorf("constructor %v must produce a service, not an error", typ)
	}

	info.Parameters = make([]ParameterInfo, typ.NumIn())
	for i := 0; i < typ.NumIn(); i++ {
		paramType := typ.In(i)
		info.Parameters[i] = ParameterInfo{
			Type:     paramType,
			Index:    i,
			IsSlice:  paramType.Kind() == reflect.Slice,
			ElemType: sliceElemType(paramType),
		}
	}

	a.mu.Lock()
	a.cache[cacheKey] = info
	a.mu.Unlock()

	return info, nil
}

// ParameterTypes returns the parameter types in declaration order.
func (info *ConstructorInfo) ParameterTypes() []reflect.Type {
	types := make([]reflect.Type, len(info.Parameters))
	for i, p := range info.Parameters {
		types[i] = p.Type
	}
	return types
}

// IsErrorType reports whether t is the error interface or implements it.
func IsErrorType(t reflect.Type) bool {
	return t != nil && (t == errType || t.Implements(errType))
}

// GenericFamily returns the package-qualified base name of an instantiated
// generic type ("pkg/path.Repo" for "pkg/path.Repo[int]"), and false for
// non-generic types. Pointer types report the family of their element.
func GenericFamily(t reflect.Type) (string, bool) {
	if t == nil {
		return "", false
	}

	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	name := t.Name()
	idx := strings.IndexByte(name, '[')
	if idx <= 0 {
		return "", false
	}

	return t.PkgPath() + "." + name[:idx], true
}

func sliceElemType(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Slice {
		return t.Elem()
	}
	return nil
}
