package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"storefront/internal/service"

	"github.com/go-playground/validator/v10"
)

var (
	hexCodePattern   = regexp.MustCompile(`^#(?:[0-9A-Fa-f]{3}|[0-9A-Fa-f]{6})$`)
	sizeNamePattern  = regexp.MustCompile(`^[A-Za-z0-9/+\s-]+$`)
	colorNamePattern = regexp.MustCompile(`^[A-Za-z0-9\s&.'-]+$`)
)

// maxBodyBytes bounds JSON request bodies
const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report json field names rather than Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	stringRule := func(match func(string) bool) validator.Func {
		return func(fl validator.FieldLevel) bool {
			return match(strings.TrimSpace(fl.Field().String()))
		}
	}
	rules := map[string]validator.Func{
		"hexcode":   stringRule(hexCodePattern.MatchString),
		"sizename":  stringRule(sizeNamePattern.MatchString),
		"colorname": stringRule(colorNamePattern.MatchString),
		"promocode": stringRule(service.ValidPromoCode),
		"notblank":  stringRule(func(s string) bool { return s != "" }),
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("register validation %q: %v", tag, err))
		}
	}
	return v
}

// ValidateRequest validates the request body against a struct with validation tags
func ValidateRequest(v any) error {
	return validate.Struct(v)
}

// DecodeAndValidate decodes JSON request body and validates it. Unknown fields
// and trailing data are rejected.
func DecodeAndValidate(r *http.Request, v any) error {
	if err := DecodeJSON(r, v); err != nil {
		return err
	}
	return ValidateRequest(v)
}

// DecodeJSON decodes the request body into v
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &MalformedRequestError{Err: err}
	}
	if dec.More() {
		return &MalformedRequestError{Err: errors.New("body must contain a single JSON object")}
	}
	return nil
}

// MalformedRequestError wraps a body that is not valid JSON for the target type
type MalformedRequestError struct {
	Err error
}

func (e *MalformedRequestError) Error() string {
	return "invalid request body: " + e.Err.Error()
}

func (e *MalformedRequestError) Unwrap() error { return e.Err }

// ValidationError represents a field validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FormatValidationErrors converts validator errors to a readable format
func FormatValidationErrors(err error) []ValidationError {
	var out []ValidationError

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			out = append(out, ValidationError{
				Field:   fieldPath(e),
				Message: getErrorMessage(e),
			})
		}
	}

	return out
}

// fieldPath drops the top-level struct name: "variants[0].sku"
func fieldPath(e validator.FieldError) string {
	_, path, ok := strings.Cut(e.Namespace(), ".")
	if !ok {
		return e.Field()
	}
	return path
}

func getErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "url":
		return "Invalid URL"
	case "min":
		return "Value is too short"
	case "max":
		return "Value is too long"
	case "gte":
		return "Value must be greater than or equal to " + e.Param()
	case "lte":
		return "Value must be less than or equal to " + e.Param()
	case "oneof":
		return "Value must be one of: " + e.Param()
	case "notblank":
		return "Value must not be blank"
	case "hexcode":
		return "Hex code must look like #RGB or #RRGGBB"
	case "sizename":
		return "Size name may only contain letters, digits, spaces and / + -"
	case "colorname":
		return "Color name contains invalid characters"
	case "promocode":
		return "Promo code must be 3-50 characters of A-Z, 0-9, underscore or hyphen"
	default:
		return "Invalid value"
	}
}

// RespondWithDecodeError answers a failed DecodeAndValidate with 400
func RespondWithDecodeError(w http.ResponseWriter, err error) {
	if errs := FormatValidationErrors(err); len(errs) > 0 {
		RespondWithValidationErrors(w, errs)
		return
	}
	var malformed *MalformedRequestError
	if errors.As(err, &malformed) {
		RespondWithError(w, http.StatusBadRequest, malformed.Error())
		return
	}
	RespondWithError(w, http.StatusBadRequest, "invalid request body")
}
