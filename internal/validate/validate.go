// Package validate checks request DTOs against their `validate` tags.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"cafecogs/backend/internal/store"
)

type FieldError struct {
	Field string
	Tag   string
	Param string
}

func (f FieldError) String() string {
	if f.Param == "" {
		return fmt.Sprintf("%s (%s)", f.Field, f.Tag)
	}
	return fmt.Sprintf("%s (%s=%s)", f.Field, f.Tag, f.Param)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report the JSON name so messages match the request body.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	// Money is compared as a number, so gte/lte tags work on decimals.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// Fields returns one entry per failed rule, or nil when data is valid.
func Fields(data any) []FieldError {
	err := validate.Struct(data)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "request", Tag: err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		// Drop the struct type name at the front of the namespace.
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		out = append(out, FieldError{Field: field, Tag: fe.Tag(), Param: fe.Param()})
	}
	return out
}

// Struct validates data and wraps failures in store.ErrInvalidInput.
func Struct(data any) error {
	fields := Fields(data)
	if len(fields) == 0 {
		return nil
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.String())
	}
	return fmt.Errorf("%w: %s", store.ErrInvalidInput, strings.Join(parts, ", "))
}
