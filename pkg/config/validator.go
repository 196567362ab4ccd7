package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationError lists every schema violation found in a config file
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "configuration file is not valid:\n  - " + strings.Join(e.Problems, "\n  - ")
}

// Validate validates a configuration file against the JSON schema
func Validate(configFile string) error {
	abs, err := filepath.Abs(configFile)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}

	return validate(gojsonschema.NewReferenceLoader("file://" + filepath.ToSlash(abs)))
}

// ValidateBytes validates an in-memory configuration document
func ValidateBytes(document []byte) error {
	return validate(gojsonschema.NewBytesLoader(document))
}

func validate(documentLoader gojsonschema.JSONLoader) error {
	schemaLoader := gojsonschema.NewStringLoader(Schema)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("failed to validate schema: %w", err)
	}

	if !result.Valid() {
		verr := &ValidationError{}
		for _, desc := range result.Errors() {
			verr.Problems = append(verr.Problems, desc.String())
		}
		return verr
	}

	return nil
}

// IsValidationError reports whether err came from schema validation
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
