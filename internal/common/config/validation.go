package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Validate checks config against the validate tags of its fields.
func Validate(config interface{}) error {
	validate := validator.New()
	return validate.Struct(config)
}

// LogValidationErrors logs one line per invalid field of a failed Validate call. Other errors are logged as is.
func LogValidationErrors(err error) {
	if err == nil {
		return
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		log.Errorf("ConfigError: %s", err)
		return
	}
	for _, err := range validationErrors {
		fieldName := stripPrefix(err.Namespace())
		tag := err.Tag()
		switch tag {
		case "required":
			log.Errorf("ConfigError: Field %s is required but was not found", fieldName)
		default:
			log.Errorf("ConfigError: Field %s has invalid value %v: %s", fieldName, err.Value(), tag)
		}
	}
}

func stripPrefix(s string) string {
	if idx := strings.Index(s, "."); idx != -1 {
		return s[idx+1:]
	}
	return s
}
