package handler

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator that reports fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// requestMessages are the caller-facing messages for missing fields.
var requestMessages = map[string]string{
	"topic":           "Please enter a topic",
	"presenter_image": "Presenter image not found",
}

func validationMessage(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return "Invalid request"
	}

	e := validationErrors[0]
	switch e.Tag() {
	case "required":
		if msg, ok := requestMessages[e.Field()]; ok {
			return msg
		}
		return e.Field() + " is required"
	case "max":
		return e.Field() + " is too long"
	default:
		return e.Field() + " is invalid"
	}
}
