// Package yamlutil provides strict YAML decoding for configuration loaders.
package yamlutil

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// UnmarshalStrict decodes YAML into v with unknown-field checking enabled.
// A document naming a field that does not exist on the target type fails
// instead of being silently dropped.
func UnmarshalStrict(data []byte, v interface{}) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(v); err != nil {
		if isUnknownFieldError(err) {
			return fmt.Errorf("unknown configuration field (check for typos): %w", err)
		}
		return err
	}
	return nil
}

// yaml.v3 reports unknown fields as "field X not found in type Y" with no
// dedicated error type to match on.
func isUnknownFieldError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "field") && strings.Contains(msg, "not found")
}
