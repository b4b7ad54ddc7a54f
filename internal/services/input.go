package services

import (
	"errors"
	"fmt"
	"html"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

var (
	validate    = newValidator()
	stripMarkup = bluemonday.StrictPolicy()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// checkStruct runs the struct's validate tags and turns the first failure into a Validation error
func checkStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return validationError(err.Error())
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return validationError(fmt.Sprintf("%s is required", fe.Field()))
	case "max":
		return validationError(fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
	case "min":
		return validationError(fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param()))
	default:
		return validationError(fmt.Sprintf("%s is invalid", fe.Field()))
	}
}

// cleanText removes any markup from user text and trims it
func cleanText(s string) string {
	return strings.TrimSpace(html.UnescapeString(stripMarkup.Sanitize(s)))
}
