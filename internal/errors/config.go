package errors

import (
	"fmt"
	"strings"
)

// ConfigurationError is raised when configuration is invalid or missing
type ConfigurationError struct {
	*ConciergeError
}

// NewConfigurationError creates a new configuration error
func NewConfigurationError(message string) *ConfigurationError {
	return &ConfigurationError{
		ConciergeError: &ConciergeError{
			Message:  message,
			Kind:     KindConfig,
			ExitCode: ExitConfigError,
		},
	}
}

// MissingEnvVarError is raised when a required environment variable is not set
type MissingEnvVarError struct {
	*ConciergeError
}

// NewMissingEnvVarError creates a new missing environment variable error
func NewMissingEnvVarError(varName, description string) *MissingEnvVarError {
	return &MissingEnvVarError{
		ConciergeError: &ConciergeError{
			Message: fmt.Sprintf("Required environment variable '%s' is not set", varName),
			Kind:    KindConfig,
			Context: &ErrorContext{
				Operation: "Loading configuration",
				Component: "Environment",
				Details: map[string]interface{}{
					"variable":    varName,
					"description": description,
				},
				Suggestions: []string{
					fmt.Sprintf("Export the variable: export %s='your-value'", varName),
					fmt.Sprintf("Add it to .concierge/config.yaml as %s", envToYAMLKey(varName)),
					"Check .env.example for required variables",
				},
				Recoverable: false,
			},
			ExitCode: ExitConfigError,
		},
	}
}

// envToYAMLKey converts an environment variable name to its dotted config key.
// Example: CONCIERGE_LLM_API_KEY -> llm.api_key
func envToYAMLKey(envVar string) string {
	parts := strings.Split(strings.ToLower(envVar), "_")
	if len(parts) > 2 && parts[0] == "concierge" {
		return parts[1] + "." + strings.Join(parts[2:], "_")
	}
	return strings.Join(parts, "_")
}

// InvalidEnvVarError is raised when an environment variable has an invalid value
type InvalidEnvVarError struct {
	*ConciergeError
}

// NewInvalidEnvVarError creates a new invalid environment variable error
func NewInvalidEnvVarError(varName, value, reason string) *InvalidEnvVarError {
	return &InvalidEnvVarError{
		ConciergeError: &ConciergeError{
			Message: fmt.Sprintf("Configuration value '%s' is invalid", varName),
			Kind:    KindConfig,
			Context: &ErrorContext{
				Operation: "Validating configuration",
				Component: "Environment",
				Details: map[string]interface{}{
					"variable": varName,
					"value":    value,
					"reason":   reason,
				},
				Suggestions: []string{
					fmt.Sprintf("Check the value of %s in your .env file or config.yaml", varName),
				},
				Recoverable: false,
			},
			ExitCode: ExitConfigError,
		},
	}
}

// ConfigFileError is raised when a configuration file cannot be read or parsed
type ConfigFileError struct {
	*ConciergeError
}

// NewConfigFileError creates a new config file error
func NewConfigFileError(filePath string, cause error) *ConfigFileError {
	return &ConfigFileError{
		ConciergeError: &ConciergeError{
			Message: fmt.Sprintf("Failed to load configuration file: %s", filePath),
			Kind:    KindConfig,
			Cause:   cause,
			Context: &ErrorContext{
				Operation: "Loading configuration",
				Component: "Config File",
				Details: map[string]interface{}{
					"file_path": filePath,
				},
				Suggestions: []string{
					"Check that the file exists and is readable",
					"Validate YAML syntax",
				},
				Recoverable: false,
			},
			ExitCode: ExitConfigError,
		},
	}
}
