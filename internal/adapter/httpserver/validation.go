package httpserver

import (
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult represents the result of validation
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

var (
	vldOnce sync.Once
	vld     *validator.Validate

	identifierRe = regexp.MustCompile(`^[a-zA-Z0-9_.@:-]+$`)
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// ValidateIdentifier checks a caller-supplied id such as a user id or a
// search id.
func ValidateIdentifier(field, id string) ValidationResult {
	switch {
	case id == "":
		return invalid(field, "REQUIRED", field+" is required")
	case len(id) > 128:
		return invalid(field, "TOO_LONG", field+" is too long (max 128 characters)")
	case !identifierRe.MatchString(id):
		return invalid(field, "INVALID_FORMAT", field+" contains invalid characters")
	}
	return ValidationResult{Valid: true}
}

func invalid(field, code, msg string) ValidationResult {
	return ValidationResult{Errors: []ValidationError{{Field: field, Code: code, Message: msg}}}
}

// validationDetails flattens validator errors to field -> tag.
func validationDetails(err error) map[string]string {
	out := map[string]string{}
	if ve, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range ve {
			out[strings.ToLower(fe.Field())] = fe.Tag()
		}
	}
	return out
}

// SanitizeString removes NUL bytes, trims, caps length and forces UTF-8.
func SanitizeString(input string, max int) string {
	input = strings.TrimSpace(strings.ReplaceAll(input, "\x00", ""))
	if max > 0 && len(input) > max {
		input = input[:max]
	}
	if !utf8.ValidString(input) {
		input = strings.ToValidUTF8(input, "")
	}
	return input
}

func containsJSON(accept string) bool {
	return strings.Contains(accept, "application/json") || strings.Contains(accept, "application/*")
}
