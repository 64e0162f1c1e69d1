package inject

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ========================================
// Core Error Values (Sentinel Errors)
// ========================================
// These are base errors that are wrapped in typed errors when returned.
// Match them with errors.Is.

var (
	// Resolution errors.
	ErrServiceNotFound = errors.New("service not found")
	ErrContractNil     = errors.New("contract type cannot be nil")

	// Lifecycle errors.
	ErrInjectorNil       = errors.New("injector cannot be nil")
	ErrInjectorDisposed  = errors.New("injector has been disposed")
	ErrScopeDisposed     = errors.New("scope has been disposed")
	ErrScopeNotInContext = errors.New("no scope found in context")
	ErrWrapperUnbound    = errors.New("wrapper is not bound to an injector")

	// Registration errors.
	ErrRegistryNil       = errors.New("registry cannot be nil")
	ErrRegistrySealed    = errors.New("registry has been built and can no longer be modified")
	ErrDescriptorNil     = errors.New("descriptor cannot be nil")
	ErrDescriptorForeign = errors.New("descriptor belongs to another registry")
	ErrStrategyMissing   = errors.New("descriptor has no instancing strategy")
	ErrConstructorNil    = errors.New("constructor cannot be nil")
	ErrSourceIncomplete  = errors.New("service source requires both Matches and Resolve")
)

var (
	_ error = ContractMismatchError{}
	_ error = RegistrationConflictError{}
	_ error = AmbiguousConstructorError{}
	_ error = MissingResolvableConstructorError{}
	_ error = CircularDependencyError{}
	_ error = ServiceNotFoundError{}
	_ error = LifetimeError{}
	_ error = LifetimeConflictError{}
	_ error = ValidationError{}
	_ error = ConstructorInvocationError{}
	_ error = ConstructorPanicError{}
	_ error = ModuleError{}
	_ error = DisposalError{}
	_ error = TypeMismatchError{}
	_ error = SourceError{}
)

// ========================================
// Typed Errors for Rich Context
// ========================================

// ContractMismatchError indicates an instancing strategy that cannot produce
// values of the declared contract type. It is raised at registration time,
// except for factory results which can only be checked when produced.
type ContractMismatchError struct {
	Contract reflect.Type
	Actual   reflect.Type
	Reason   string
}

func (e ContractMismatchError) Error() string {
	if e.Contract == nil {
		return fmt.Sprintf("contract mismatch: %s", e.Reason)
	}

	if e.Actual == nil {
		return fmt.Sprintf("contract mismatch for %s: %s", formatType(e.Contract), e.Reason)
	}

	return fmt.Sprintf("contract mismatch for %s: %s (%s is not assignable to %s)",
		formatType(e.Contract), e.Reason, formatType(e.Actual), formatType(e.Contract))
}

func (e ContractMismatchError) Is(target error) bool {
	return target == ErrContractNil && e.Contract == nil
}

// RegistrationConflictError indicates a singular and a multiple registration
// exist for the same contract.
type RegistrationConflictError struct {
	Contract         reflect.Type
	ExistingMultiple bool
}

func (e RegistrationConflictError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("registration conflict for %s: a singular and a multiple registration exist for the same contract\n\n",
		formatType(e.Contract)))

	if e.ExistingMultiple {
		b.WriteString("The contract was registered with AllowMultiple; every later registration\n")
		b.WriteString("must also use AllowMultiple.\n")
	} else {
		b.WriteString("The contract was registered without AllowMultiple; a collection registration\n")
		b.WriteString("cannot be added next to it.\n")
	}

	return b.String()
}

// AmbiguousConstructorError indicates two constructors of an implementation
// tie for the most resolvable parameters.
type AmbiguousConstructorError struct {
	Implementation reflect.Type
	First          []reflect.Type
	Second         []reflect.Type
}

func (e AmbiguousConstructorError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("ambiguous constructors for %s: both have %d resolvable parameters\n\n",
		formatType(e.Implementation), len(e.First)))
	b.WriteString(fmt.Sprintf("    (%s)\n", formatTypes(e.First)))
	b.WriteString(fmt.Sprintf("    (%s)\n", formatTypes(e.Second)))
	b.WriteString("\nTo resolve this:\n")
	b.WriteString("  • Remove one of the constructors from the registration\n")
	b.WriteString("  • Register it with a Factory that calls the intended constructor\n")

	return b.String()
}

// MissingResolvableConstructorError indicates no constructor of an
// implementation has all of its parameters satisfiable.
type MissingResolvableConstructorError struct {
	Implementation reflect.Type
	Candidates     [][]reflect.Type
}

func (e MissingResolvableConstructorError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("no resolvable constructor for %s", formatType(e.Implementation)))

	if len(e.Candidates) > 0 {
		b.WriteString("\n\nCandidates:\n")
		for _, params := range e.Candidates {
			b.WriteString(fmt.Sprintf("    (%s)\n", formatTypes(params)))
		}
		b.WriteString("\nRegister the missing parameter types or declare defaults with WithDefault.")
	}

	return b.String()
}

// CircularDependencyError indicates a resolution cycle: producing Contract
// required producing it again on the same call path.
type CircularDependencyError struct {
	Contract reflect.Type
	Path     []reflect.Type // from the first production of Contract to the re-entrant request
}

func (e CircularDependencyError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("circular dependency detected for %s:\n\n", formatType(e.Contract)))

	path := e.Path
	if len(path) == 0 {
		path = []reflect.Type{e.Contract}
	}

	for _, t := range path {
		b.WriteString(fmt.Sprintf("    %s\n", formatType(t)))
		b.WriteString("      ↓\n")
	}
	b.WriteString(fmt.Sprintf("    %s (cycle)\n", formatType(e.Contract)))

	b.WriteString("\nTo resolve this:\n")
	b.WriteString("  • Depend on *Lazy[T] or *ExportFactory[T] to defer the resolution\n")
	b.WriteString("  • Restructure to remove the circular relationship\n")

	return b.String()
}

// ServiceNotFoundError indicates no registration or source matches a contract.
type ServiceNotFoundError struct {
	Contract  reflect.Type
	Available []reflect.Type // Registered contracts, for suggestions
}

func (e ServiceNotFoundError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("service not found: %s", formatType(e.Contract)))

	if similar := findSimilarTypes(e.Contract, e.Available); len(similar) > 0 {
		b.WriteString("\n\nDid you mean one of these?\n")
		for _, t := range similar {
			b.WriteString(fmt.Sprintf("  • %s\n", formatType(t)))
		}
	}

	return b.String()
}

func (e ServiceNotFoundError) Is(target error) bool {
	return target == ErrServiceNotFound
}

// findSimilarTypes finds types with similar names using a simple substring match
func findSimilarTypes(target reflect.Type, available []reflect.Type) []reflect.Type {
	if target == nil || len(available) == 0 {
		return nil
	}

	targetName := target.String()
	targetShortName := target.Name()
	if targetShortName == "" {
		targetShortName = targetName
	}

	var similar []reflect.Type
	for _, t := range available {
		if t == nil || t == target {
			continue
		}

		typeName := t.String()
		typeShortName := t.Name()
		if typeShortName == "" {
			typeShortName = typeName
		}

		if targetShortName == typeShortName ||
			strings.Contains(strings.ToLower(typeName), strings.ToLower(targetShortName)) ||
			strings.Contains(strings.ToLower(targetName), strings.ToLower(typeShortName)) {
			similar = append(similar, t)
		}

		if len(similar) >= 5 {
			break
		}
	}

	return similar
}

// LifetimeError indicates an invalid lifetime value.
type LifetimeError struct {
	Value any
}

func (e LifetimeError) Error() string {
	return fmt.Sprintf("invalid service lifetime: %v", e.Value)
}

// LifetimeConflictError indicates a captive dependency: a longer-lived
// registration depends on a shorter-lived one.
type LifetimeConflictError struct {
	Contract           reflect.Type
	Lifetime           Lifetime
	DependencyContract reflect.Type
	DependencyLifetime Lifetime
}

func (e LifetimeConflictError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("lifetime conflict: %s (%s) cannot depend on %s (%s)\n\n",
		formatType(e.Contract), e.Lifetime,
		formatType(e.DependencyContract), e.DependencyLifetime))

	b.WriteString("A singleton depending on a scoped service would capture a single scope's value.\n\n")
	b.WriteString("To resolve this:\n")
	b.WriteString(fmt.Sprintf("  • Change %s to Scoped lifetime\n", formatType(e.Contract)))
	b.WriteString(fmt.Sprintf("  • Change %s to Singleton lifetime\n", formatType(e.DependencyContract)))
	b.WriteString(fmt.Sprintf("  • Depend on *Lazy[%s] to resolve it on use\n", formatType(e.DependencyContract)))

	return b.String()
}

// ValidationError indicates a malformed registration.
type ValidationError struct {
	Contract reflect.Type
	Cause    error
}

func (e ValidationError) Error() string {
	if e.Contract != nil {
		return fmt.Sprintf("%s: %v", formatType(e.Contract), e.Cause)
	}
	return e.Cause.Error()
}

func (e ValidationError) Unwrap() error {
	return e.Cause
}

// ConstructorInvocationError wraps an error returned by a constructor or factory.
type ConstructorInvocationError struct {
	Contract    reflect.Type
	Constructor reflect.Type
	Cause       error
}

func (e ConstructorInvocationError) Error() string {
	if e.Constructor == nil {
		return fmt.Sprintf("factory for %s failed: %v", formatType(e.Contract), e.Cause)
	}
	return fmt.Sprintf("constructor %s for %s failed: %v",
		formatType(e.Constructor), formatType(e.Contract), e.Cause)
}

func (e ConstructorInvocationError) Unwrap() error {
	return e.Cause
}

// ConstructorPanicError indicates a constructor or factory panicked.
// It captures the panic value and stack trace for debugging.
type ConstructorPanicError struct {
	Contract reflect.Type
	Panic    any
	Stack    []byte
}

func (e ConstructorPanicError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("constructor for %s panicked: %v\n", formatType(e.Contract), e.Panic))

	if len(e.Stack) > 0 {
		b.WriteString("\nStack trace:\n")
		b.Write(e.Stack)
	}

	return b.String()
}

// Unwrap exposes a panic value that is itself an error.
func (e ConstructorPanicError) Unwrap() error {
	if err, ok := e.Panic.(error); ok {
		return err
	}
	return nil
}

// ModuleError wraps errors from module registration.
type ModuleError struct {
	Module string
	Cause  error
}

func (e ModuleError) Error() string {
	return fmt.Sprintf("module %q: %v", e.Module, e.Cause)
}

func (e ModuleError) Unwrap() error {
	return e.Cause
}

// SourceError wraps a failure of a service source while synthesizing
// registrations for a contract.
type SourceError struct {
	Source   string
	Contract reflect.Type
	Cause    error
}

func (e SourceError) Error() string {
	return fmt.Sprintf("source %q failed for %s: %v", e.Source, formatType(e.Contract), e.Cause)
}

func (e SourceError) Unwrap() error {
	return e.Cause
}

// TypeMismatchError indicates a type assertion failed in a typed helper.
type TypeMismatchError struct {
	Expected reflect.Type
	Actual   reflect.Type
	Context  string
}

func (e TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Context, formatType(e.Expected), formatType(e.Actual))
}

// DisposalError aggregates disposal errors
type DisposalError struct {
	Context string // "injector", "scope"
	Errors  []error
}

func (e DisposalError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("%s disposal failed: %v", e.Context, e.Errors[0])
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s disposal failed with %d errors:", e.Context, len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("\n  %d. %v", i+1, err))
	}
	return sb.String()
}

func (e DisposalError) Unwrap() []error {
	return e.Errors
}

func formatTypes(types []reflect.Type) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = formatType(t)
	}
	return strings.Join(parts, ", ")
}

// formatType formats a reflect.Type for error messages.
func formatType(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}

	switch t.Kind() {
	case reflect.Pointer:
		elem := t.Elem()
		if elem.PkgPath() != "" && elem.Name() != "" {
			return "*" + elem.Name()
		}
		return t.String()
	case reflect.Slice:
		elem := t.Elem()
		if elem.PkgPath() != "" && elem.Name() != "" {
			return "[]" + elem.Name()
		}
		return t.String()
	case reflect.Func:
		return t.String()
	default:
		if t.Name() != "" {
			return t.Name()
		}
		return t.String()
	}
}
