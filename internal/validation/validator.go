// Package validation checks `validate` struct tags and renders failures as the details
// of a 422 response, keyed by the field's JSON name.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/spec-kit/clinic-crm/pkg/util"
)

// Message is the top-level message of every validation failure.
const Message = "The given data was invalid."

var (
	once     sync.Once
	instance *validator.Validate
)

func get() *validator.Validate {
	once.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(fieldName)
		if err := v.RegisterValidation("cents", cents); err != nil {
			panic(err)
		}
		instance = v
	})
	return instance
}

// Struct validates s. Rule violations become a VALIDATION_FAILED DomainError; a value
// the validator cannot inspect is an internal error.
func Struct(s any) error {
	err := get().Struct(s)
	if err == nil {
		return nil
	}
	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return apperrors.NewInternalError(err)
	}
	fields := map[string]any{}
	for _, fe := range invalid {
		msgs, _ := fields[fe.Field()].([]string)
		fields[fe.Field()] = append(msgs, message(fe))
	}
	return apperrors.NewValidationError(Message, fields)
}

// Field builds a validation error for a single field, for rules that need a store lookup.
func Field(name, msg string) error {
	return apperrors.NewValidationError(Message, map[string]any{name: []string{msg}})
}

// cents accepts numbers with at most two decimal places.
func cents(fl validator.FieldLevel) bool {
	formatted := strconv.FormatFloat(fl.Field().Float(), 'f', -1, 64)
	dot := strings.IndexByte(formatted, '.')
	return dot < 0 || len(formatted)-dot-1 <= 2
}

func message(fe validator.FieldError) string {
	field := strings.ReplaceAll(fe.Field(), "_", " ")
	text := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", field)
	case "email":
		return fmt.Sprintf("The %s must be a valid email address.", field)
	case "min":
		if text {
			return fmt.Sprintf("The %s must be at least %s characters.", field, fe.Param())
		}
		return fmt.Sprintf("The %s must be at least %s.", field, number(fe.Param()))
	case "max":
		if text {
			return fmt.Sprintf("The %s may not be greater than %s characters.", field, fe.Param())
		}
		return fmt.Sprintf("The %s may not be greater than %s.", field, number(fe.Param()))
	case "gte":
		return fmt.Sprintf("The %s must be at least %s.", field, number(fe.Param()))
	case "gt":
		return fmt.Sprintf("The %s must be greater than %s.", field, number(fe.Param()))
	case "lt":
		return fmt.Sprintf("The %s must be less than %s.", field, number(fe.Param()))
	case "oneof":
		return fmt.Sprintf("The selected %s is invalid.", field)
	case "cents":
		return fmt.Sprintf("The %s may not have more than 2 decimal places.", field)
	default:
		return fmt.Sprintf("The %s field is invalid.", field)
	}
}

// number prints rule parameters such as 1e10 in plain notation.
func number(param string) string {
	f, err := strconv.ParseFloat(param, 64)
	if err != nil {
		return param
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// fieldName uses the json tag when there is one and snake_case otherwise.
func fieldName(f reflect.StructField) string {
	if tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]; tag != "" && tag != "-" {
		return tag
	}
	return snake(f.Name)
}

func snake(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]))
			nextLower := i > 0 && i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || nextLower {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
