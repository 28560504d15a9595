package middleware

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

const maxSecretIDLength = 32

var errorMessages = map[string]string{
	"required": "Field is required",
	"email":    "Invalid email format",
	"max":      "Value is too long",
	"secretid": "Invalid identification number",
}

var registerOnce struct {
	sync.Once
	err error
}

// RegisterValidators installs the custom binding tags on gin's validator and
// reports form field names instead of Go field names.
func RegisterValidators() error {
	registerOnce.Do(func() { registerOnce.err = registerValidators() })
	return registerOnce.err
}

func registerValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected binding validator engine")
	}

	if err := v.RegisterValidation("secretid", validateSecretID); err != nil {
		return err
	}

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"form", "json"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return fld.Name
	})
	return nil
}

// validateSecretID bounds the length and rejects control characters. The
// value is compared verbatim with the upstream record, so any printable
// formatting (dashes, spaces) is accepted and nothing is normalized here.
func validateSecretID(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" || utf8.RuneCountInString(s) > maxSecretIDLength {
		return false
	}
	for _, r := range s {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

func validationErrors(err error) []ValidationError {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return nil
	}

	out := make([]ValidationError, 0, len(errs))
	for _, e := range errs {
		msg := errorMessages[e.Tag()]
		if msg == "" {
			msg = e.Error()
		}
		out = append(out, ValidationError{Field: e.Field(), Message: msg})
	}
	return out
}
