package utils

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var linkedInPattern = regexp.MustCompile(`^https?://(www\.)?linkedin\.com/in/[A-Za-z0-9-]+/?$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("linkedin", func(fl validator.FieldLevel) bool {
		return IsValidLinkedInURL(fl.Field().String())
	})
	_ = v.RegisterValidation("status", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "draft", "approved", "sent":
			return true
		}
		return false
	})
	return v
}

// IsValidLinkedInURL reports whether s is a LinkedIn profile URL.
func IsValidLinkedInURL(s string) bool {
	return linkedInPattern.MatchString(s)
}

type FieldError struct {
	Field string
	Tag   string
	Param string
}

func (fe FieldError) String() string {
	switch fe.Tag {
	case "required":
		return fe.Field + " is required"
	case "min":
		return fe.Field + " must be at least " + fe.Param + " characters"
	case "max":
		return fe.Field + " must be at most " + fe.Param + " characters"
	case "linkedin":
		return fe.Field + " must be a LinkedIn profile URL"
	case "status", "oneof":
		return fe.Field + " must be draft, approved, or sent"
	default:
		return fe.Field + " is invalid"
	}
}

// ValidationError lists every failed constraint of a struct.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, fe := range e.Fields {
		msgs = append(msgs, fe.String())
	}
	return strings.Join(msgs, ", ")
}

// Failed reports whether the named field failed the given tag.
func (e *ValidationError) Failed(field, tag string) bool {
	for _, fe := range e.Fields {
		if fe.Field == field && fe.Tag == tag {
			return true
		}
	}
	return false
}

func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field: fe.Field(),
			Tag:   fe.Tag(),
			Param: fe.Param(),
		})
	}
	return out
}
