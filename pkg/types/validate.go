package types

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
)

// ErrMissingField is returned by Validate when a required field is absent.
var ErrMissingField = errors.New("missing required field")

var validate = validator.New()

// Validate checks the required fields of a record, a pointer to a record or
// a slice of records. Other values are accepted as is.
func Validate(v any) error {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Struct:
		if !rv.CanAddr() {
			cp := reflect.New(rv.Type())
			cp.Elem().Set(rv)
			rv = cp.Elem()
		}
		return checkStruct(rv.Addr().Interface())
	case reflect.Slice:
		elem := rv.Type().Elem()
		if elem.Kind() != reflect.Struct && elem.Kind() != reflect.Pointer {
			return nil
		}
		for i := 0; i < rv.Len(); i++ {
			if err := Validate(rv.Index(i).Interface()); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
	}
	return nil
}

func checkStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingField, fieldErrs[0].Namespace())
	}
	return err
}
