// Package validation checks form input before any network call is made.
//
// Forms are validated with struct tags. Failures come back as one
// FieldError per invalid field, with a message suitable for rendering next
// to the input.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// repoPattern accepts "org/name" paths, optionally nested ("group/sub/name").
var repoPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*(/[A-Za-z0-9._-]+)+$`)

var (
	once     sync.Once
	validate *validator.Validate
)

// Validator returns the shared validator with the application's custom
// tags registered.
func Validator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(formName)
		_ = validate.RegisterValidation("repo", func(fl validator.FieldLevel) bool {
			return ValidRepo(fl.Field().String())
		})
	})
	return validate
}

// ValidRepo reports whether s looks like a repository path.
func ValidRepo(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.Contains(s, "..") {
		return false
	}
	return repoPattern.MatchString(s)
}

// formName reports fields by their form name, falling back to json then the
// Go name.
func formName(f reflect.StructField) string {
	for _, tag := range []string{"form", "json"} {
		name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
		if name == "-" {
			continue
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

// FieldError is one invalid form field.
type FieldError struct {
	Field   string // Form field name
	Value   string // The rejected value
	Message string // Human-readable message
}

func (e FieldError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// Errors is the set of field errors for one form.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Error()
	}
	return strings.Join(parts, "; ")
}

// For returns the message for field, or "".
func (e Errors) For(field string) string {
	for _, fe := range e {
		if fe.Field == field {
			return fe.Message
		}
	}
	return ""
}

// Struct validates v. It returns nil or Errors.
func Struct(v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate form: %w", err)
	}

	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field:   fieldPath(fe),
			Value:   fmt.Sprint(fe.Value()),
			Message: message(fe),
		})
	}
	return out
}

// fieldPath drops the struct name from the namespace ("ScanForm.repo" ->
// "repo").
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "repo":
		return "Invalid repository, expected org/name"
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("At most %s items allowed", fe.Param())
		}
		return fmt.Sprintf("Must be at most %s characters", fe.Param())
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("Select at least %s", fe.Param())
		}
		return fmt.Sprintf("Must be at least %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("Must be %s or more", fe.Param())
	case "lte":
		return fmt.Sprintf("Must be %s or less", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", fe.Param())
	case "gtfield":
		return "Must be later than " + fe.Param()
	case "url", "http_url":
		return "Must be a valid URL"
	}
	return fmt.Sprintf("Failed %q validation", fe.Tag())
}
