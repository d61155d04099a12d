package common

import (
	"fmt"
	"slices"

	"atslite/internal/formatters"
)

// ValidateOutputFormat validates format against configured supported formats
func ValidateOutputFormat(format string, supportedFormats []string) error {
	if len(supportedFormats) == 0 {
		return nil // No restrictions configured
	}

	if slices.Contains(supportedFormats, format) {
		return nil
	}

	return fmt.Errorf("unsupported output format '%s'. Supported formats: %v",
		format, supportedFormats)
}

// ValidateRegisteredFormat checks format against the global formatter registry
// and, when given, a command-specific allow list.
func ValidateRegisteredFormat(format string, allowed ...string) error {
	if len(allowed) == 0 {
		allowed = formatters.GlobalRegistry.GetSupportedFormats()
	}
	return ValidateOutputFormat(format, allowed)
}
