package validation

import (
	"reflect"
	"regexp"
	"sync"

	"github.com/cockroachdb/errors"
)

// DefaultMaxDepth is the nesting limit of a Validator created without
// WithMaxDepth.
const DefaultMaxDepth = 32

var (
	// ErrServiceNotFound is returned when a dependency is not provided by the
	// validator's locator.
	ErrServiceNotFound = errors.New("service not found")
	// ErrMaxDepth is reported when nested validation goes deeper than the
	// validator allows.
	ErrMaxDepth = errors.New("maximum validation depth exceeded")
)

// ServiceLocator supplies the dependencies of validation methods.
type ServiceLocator interface {
	Lookup(t reflect.Type) (interface{}, bool)
}

// Services is a ServiceLocator backed by a map. The zero value is empty and
// ready to use. It is safe for concurrent use.
type Services struct {
	mu sync.RWMutex
	m  map[reflect.Type]interface{}
}

// Lookup implements ServiceLocator.
func (s *Services) Lookup(t reflect.Type) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[t]
	return v, ok
}

// Provide registers v as the service for type T, replacing any previous one.
func Provide[T any](s *Services, v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = map[reflect.Type]interface{}{}
	}
	s.m[reflect.TypeFor[T]()] = v
}

// Option configures a Validator.
type Option func(*Validator)

// WithMaxDepth limits how deeply Nested may recurse.
func WithMaxDepth(n int) Option {
	return func(v *Validator) {
		v.maxDepth = n
	}
}

// Validator runs registered validations. A Validator created with New may be
// used concurrently; each call to Validate works on its own copy, which is the
// *Validator that generated code receives.
type Validator struct {
	locator  ServiceLocator
	maxDepth int

	depth  int
	active map[visit]struct{}
}

type visit struct {
	ptr uintptr
	typ reflect.Type
}

// New creates a validator that resolves dependencies from the given locator,
// which may be nil if no validation has dependencies.
func New(locator ServiceLocator, opts ...Option) *Validator {
	v := &Validator{locator: locator, maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs every validation registered for the subject's type.
func (v *Validator) Validate(subject interface{}) Result {
	run := &Validator{locator: v.locator, maxDepth: v.maxDepth, active: map[visit]struct{}{}}
	return run.Nested(subject)
}

// Nested validates a value that is part of the subject currently being
// validated. A pointer that is already being validated further up is skipped,
// so self-referential structures terminate; and recursion deeper than the
// validator's maximum depth is reported as a failure.
func (v *Validator) Nested(subject interface{}) Result {
	if subject == nil {
		return Result{}
	}
	if v.active == nil {
		// called on a Validator from New rather than from generated code
		return v.Validate(subject)
	}
	rv := reflect.ValueOf(subject)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return Result{}
		}
		key := visit{ptr: rv.Pointer(), typ: rv.Type()}
		if _, ok := v.active[key]; ok {
			return Result{}
		}
		v.active[key] = struct{}{}
		defer delete(v.active, key)
	}
	if v.depth >= v.maxDepth {
		return Failed(errors.Wrapf(ErrMaxDepth, "validating %v: nesting deeper than %d", rv.Type(), v.maxDepth))
	}
	v.depth++
	defer func() { v.depth-- }()

	var res Result
	for _, fn := range validatorsFor(rv) {
		res.Merge(fn.run(v))
	}
	return res
}

// Resolve returns the dependency of type T.
func Resolve[T any](v *Validator) (T, error) {
	var zero T
	t := reflect.TypeFor[T]()
	if v.locator == nil {
		return zero, errors.Wrapf(ErrServiceNotFound, "resolving %v without a service locator", t)
	}
	s, ok := v.locator.Lookup(t)
	if !ok {
		return zero, errors.Wrapf(ErrServiceNotFound, "resolving %v", t)
	}
	typed, ok := s.(T)
	if !ok {
		return zero, errors.AssertionFailedf("service for %v has type %T", t, s)
	}
	return typed, nil
}

// ResolveInto stores the dependency of type T in dst.
func ResolveInto[T any](v *Validator, dst *T) error {
	s, err := Resolve[T](v)
	if err != nil {
		return err
	}
	*dst = s
	return nil
}

var (
	patternsMu sync.RWMutex
	patterns   = map[string]*regexp.Regexp{}
)

// Matches reports whether s contains a match of the regular expression
// pattern. An invalid pattern matches nothing.
func Matches[S ~string](s S, pattern string) bool {
	patternsMu.RLock()
	re, ok := patterns[pattern]
	patternsMu.RUnlock()
	if !ok {
		var err error
		re, err = regexp.Compile(pattern)
		patternsMu.Lock()
		patterns[pattern] = re
		patternsMu.Unlock()
		if err != nil {
			return false
		}
	}
	return re != nil && re.MatchString(string(s))
}
