package validation

import (
	"reflect"
	"sync"
)

var (
	registryLock sync.RWMutex
	registry     = map[reflect.Type][]func(*Validator, interface{}) Result{}
)

// Register adds a validation for subjects of type T. Generated code calls it
// from init functions; more than one validation may be registered per type.
func Register[T any](fn func(validator *Validator, subject T) Result) {
	registryLock.Lock()
	defer registryLock.Unlock()
	t := reflect.TypeFor[T]()
	registry[t] = append(registry[t], func(v *Validator, s interface{}) Result {
		return fn(v, s.(T))
	})
}

// Registered reports whether any validation is registered for subjects of the
// given type, or of a pointer to it.
func Registered(t reflect.Type) bool {
	registryLock.RLock()
	defer registryLock.RUnlock()
	if len(registry[t]) > 0 || len(registry[reflect.PointerTo(t)]) > 0 {
		return true
	}
	return t.Kind() == reflect.Pointer && len(registry[t.Elem()]) > 0
}

type boundValidation struct {
	fn      func(*Validator, interface{}) Result
	subject interface{}
}

func (b boundValidation) run(v *Validator) Result {
	return b.fn(v, b.subject)
}

// validatorsFor returns the validations for the value, including those
// registered for *T when given a T and for T when given a *T.
func validatorsFor(rv reflect.Value) []boundValidation {
	registryLock.RLock()
	defer registryLock.RUnlock()
	var bound []boundValidation
	t := rv.Type()
	for _, fn := range registry[t] {
		bound = append(bound, boundValidation{fn: fn, subject: rv.Interface()})
	}
	if t.Kind() == reflect.Pointer {
		for _, fn := range registry[t.Elem()] {
			bound = append(bound, boundValidation{fn: fn, subject: rv.Elem().Interface()})
		}
	} else if fns := registry[reflect.PointerTo(t)]; len(fns) > 0 {
		// validate a copy; the caller passed a value, not something to share
		p := reflect.New(t)
		p.Elem().Set(rv)
		for _, fn := range fns {
			bound = append(bound, boundValidation{fn: fn, subject: p.Interface()})
		}
	}
	return bound
}
