package tracking

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate enforces the struct tags on wire payloads before the
// field-level contract checks run. Names in failures come from the json
// tag so callers see the wire field, not the Go one.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validateStruct(payload any) error {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}
	var failures validator.ValidationErrors
	if errors.As(err, &failures) && len(failures) > 0 {
		first := failures[0]
		return NewValidationError(first.Field(), "failed "+first.Tag()+" constraint")
	}
	return err
}
