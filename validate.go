package apiclient

import (
	"errors"
	"reflect"

	"github.com/go-playground/validator/v10"
)

// SelfValidator is implemented by result types that validate themselves.
// It runs after tag validation.
type SelfValidator interface {
	Validate() error
}

// Validator validates a decoded result before it is returned.
type Validator interface {
	Validate(v any) error
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(v any) error

// Validate calls f.
func (f ValidatorFunc) Validate(v any) error { return f(v) }

var validate = validator.New(validator.WithRequiredStructEnabled())

// tagValidator applies `validate` struct tags to every struct reachable
// through top-level pointers, slices and maps, then calls SelfValidator.
type tagValidator struct{}

func (tagValidator) Validate(v any) error {
	return validateValue(reflect.ValueOf(v))
}

func validateValue(v reflect.Value) error {
	//exhaustive:ignore
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		if v.Kind() == reflect.Pointer && v.Elem().Kind() == reflect.Struct {
			return validateStruct(v)
		}
		return validateValue(v.Elem())
	case reflect.Struct:
		if v.CanAddr() {
			return validateStruct(v.Addr())
		}
		return validate.Struct(v.Interface())
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return nil
		}
		var errs []error
		for i := range v.Len() {
			errs = append(errs, validateValue(v.Index(i)))
		}
		return errors.Join(errs...)
	case reflect.Map:
		var errs []error
		iter := v.MapRange()
		for iter.Next() {
			errs = append(errs, validateValue(iter.Value()))
		}
		return errors.Join(errs...)
	default:
		return nil
	}
}

// validateStruct validates the struct ptr points to.
func validateStruct(ptr reflect.Value) error {
	if err := validate.Struct(ptr.Interface()); err != nil {
		var invalid *validator.InvalidValidationError
		if !errors.As(err, &invalid) {
			return err
		}
	}
	if sv, ok := ptr.Interface().(SelfValidator); ok {
		return sv.Validate()
	}
	return nil
}
