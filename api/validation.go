package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// formatFieldName turns "start_month" into "Start Month".
func formatFieldName(s string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(s, "_", " "))
}

// validationMessages flattens validator errors into one message per field.
func validationMessages(err error) []string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return nil
	}
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		field := formatFieldName(e.Field())
		switch e.Tag() {
		case "required":
			out = append(out, fmt.Sprintf("%s is required", field))
		case "datetime":
			out = append(out, fmt.Sprintf("%s must be YYYY-MM", field))
		case "min":
			out = append(out, fmt.Sprintf("%s must not be empty", field))
		case "oneof":
			out = append(out, fmt.Sprintf("%s must be one of: %s", field, e.Param()))
		default:
			out = append(out, fmt.Sprintf("%s is invalid", field))
		}
	}
	return out
}
