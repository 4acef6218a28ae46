package state

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"chamada/internal/timeofday"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	if err := v.RegisterValidation("timeofday", func(fl validator.FieldLevel) bool {
		return timeofday.IsValidTimeFormat(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

func validateInput(input interface{}) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		fields := make([]string, 0, len(fieldErrs))
		for _, fieldErr := range fieldErrs {
			fields = append(fields, fieldErr.Field())
		}
		return &ValidationError{Fields: fields}
	}
	return err
}
