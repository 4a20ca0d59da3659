// Package validation holds the shared validator and the custom tags used by
// policy files, stored origins and configuration.
package validation

import (
	"fmt"
	"net/url"
	"regexp"

	"github.com/benvon/originguard/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New(validator.WithRequiredStructEnabled())

	if err := Validate.RegisterValidation("web_origin", validateWebOrigin); err != nil {
		panic(fmt.Sprintf("failed to register web_origin validator: %v", err))
	}
	if err := Validate.RegisterValidation("regex_pattern", validateRegexPattern); err != nil {
		panic(fmt.Sprintf("failed to register regex_pattern validator: %v", err))
	}
	if err := Validate.RegisterValidation("origin_kind", validateOriginKind); err != nil {
		panic(fmt.Sprintf("failed to register origin_kind validator: %v", err))
	}
	Validate.RegisterStructValidation(validateCorsOrigin, models.CorsOrigin{})
}

// IsWebOrigin reports whether s is a serialized origin: http or https scheme,
// a host, and nothing after it. A trailing slash makes it a URL, not an origin.
func IsWebOrigin(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != "" && u.User == nil && u.Path == "" && u.RawQuery == "" && u.Fragment == "" && !u.ForceQuery
}

func validateWebOrigin(fl validator.FieldLevel) bool {
	return IsWebOrigin(fl.Field().String())
}

func validateRegexPattern(fl validator.FieldLevel) bool {
	_, err := regexp.Compile(fl.Field().String())
	return err == nil
}

// validateOriginKind validates that a string is a valid OriginKind enum value
func validateOriginKind(fl validator.FieldLevel) bool {
	switch models.OriginKind(fl.Field().String()) {
	case models.OriginKindExact, models.OriginKindRegex:
		return true
	default:
		return false
	}
}

// validateCorsOrigin checks Value against the rule of its Kind.
func validateCorsOrigin(sl validator.StructLevel) {
	o := sl.Current().Interface().(models.CorsOrigin)
	switch o.Kind {
	case models.OriginKindExact:
		if !IsWebOrigin(o.Value) {
			sl.ReportError(o.Value, "Value", "Value", "web_origin", "")
		}
	case models.OriginKindRegex:
		if _, err := regexp.Compile(o.Value); err != nil {
			sl.ReportError(o.Value, "Value", "Value", "regex_pattern", "")
		}
	}
}
