package val

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/code19m/errx"
	"github.com/go-playground/validator/v10"
)

const (
	CodeValidationFailed = "VALIDATION_FAILED"
)

// ValidateSchema validates schema against its `validate` tags. Failures are returned as a
// T_Validation error with code VALIDATION_FAILED and one field entry per failed field.
func ValidateSchema(schema any) error {
	err := getValidator().Struct(schema)
	if err == nil {
		return nil
	}

	var failed validator.ValidationErrors
	if !errors.As(err, &failed) {
		return errx.New(
			"Schema could not be validated: "+err.Error(),
			errx.WithCode(CodeValidationFailed),
			errx.WithType(errx.T_Validation),
		)
	}

	fields := make(errx.M, len(failed))
	for _, fe := range failed {
		fields[fe.Field()] = describe(fe)
	}

	return errx.New(
		"Validation failed. See fields for details.",
		errx.WithCode(CodeValidationFailed),
		errx.WithType(errx.T_Validation),
		errx.WithFields(fields),
	)
}

// messages maps a validation tag to a description. %s is replaced with the tag parameter.
var messages = map[string]string{ //nolint:gochecknoglobals // read-only lookup table
	"required":        "This field is required",
	"required_if":     "This field is required here",
	"required_unless": "This field is required here",
	"email":           "Invalid email format",
	"gte":             "Must be greater than or equal to %s",
	"lte":             "Must be less than or equal to %s",
	"gt":              "Must be greater than %s",
	"lt":              "Must be less than %s",
	"startswith":      "Must start with: %s",
	"endswith":        "Must end with: %s",
	"excludesall":     "Must not contain any of: %s",
	"datetime":        "Must be a valid datetime in format: %s",
	"uuid":            "Must be a valid UUID",
	"base64":          "Must be valid base64",
	"url":             "Must be a valid URL",
	"numeric":         "Must be a valid number",
	"filename":        "Must be a plain file name without path separators",
	"dive":            "Contains an invalid item",
}

// sizeMessages cover tags whose wording depends on whether the field is a string.
var sizeMessages = map[string][2]string{ //nolint:gochecknoglobals // read-only lookup table
	"min": {"Must be at least %s characters", "Must be at least %s"},
	"max": {"Must be at most %s characters", "Must be at most %s"},
	"len": {"Must be exactly %s characters", "Must have exactly %s items"},
}

func describe(fe validator.FieldError) string {
	tag, param := fe.Tag(), fe.Param()

	if tag == "oneof" {
		return "Must be one of: " + strings.Join(strings.Fields(param), ", ")
	}

	if pair, ok := sizeMessages[tag]; ok {
		tmpl := pair[1]
		if fe.Kind() == reflect.String {
			tmpl = pair[0]
		}
		return fmt.Sprintf(tmpl, param)
	}

	if tmpl, ok := messages[tag]; ok {
		if strings.Contains(tmpl, "%s") {
			return fmt.Sprintf(tmpl, param)
		}
		return tmpl
	}

	return "Failed validation: " + tag
}
