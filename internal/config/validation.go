package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/conneroisu/anchorplay/internal/logging"
	"github.com/conneroisu/anchorplay/internal/validation"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	writeIssues := func(title string, issues []ValidationError) {
		if len(issues) == 0 {
			return
		}
		builder.WriteString(title + ":\n")
		for _, issue := range issues {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", issue.Field, issue.Message))
			for _, suggestion := range issue.Suggestions {
				builder.WriteString(fmt.Sprintf("    hint: %s\n", suggestion))
			}
		}
	}

	writeIssues("Validation errors", vr.Errors)
	writeIssues("Validation warnings", vr.Warnings)

	return builder.String()
}

func (vr *ValidationResult) addError(field string, value interface{}, message string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field string, value interface{}, message string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

// ValidateConfigWithDetails validates every section and collects errors and
// warnings with suggestions.
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validateStoreConfigDetails(&config.Store, result)
	validateServerConfigDetails(&config.Server, result)
	validateCacheConfigDetails(&config.Cache, result)
	validateLogConfigDetails(&config.Log, result)

	result.Valid = !result.HasErrors()

	return result
}

func validateStoreConfigDetails(config *StoreConfig, result *ValidationResult) {
	if config.Root == "" {
		result.addError("store.root", config.Root, "store root is required",
			"Point store.root at the directory holding one folder per template")
	} else if info, err := os.Stat(config.Root); err != nil {
		result.addWarning("store.root", config.Root, "store root does not exist yet",
			"Create the directory or set ANCHORPLAY_STORE_ROOT")
	} else if !info.IsDir() {
		result.addError("store.root", config.Root, "store root is not a directory")
	}

	fileNames := []struct{ field, name string }{
		{"store.explanations_file", config.ExplanationsFile},
		{"store.legacy_explanations_file", config.LegacyExplanationsFile},
	}
	for _, f := range fileNames {
		if err := validation.ValidateFileName(f.name); err != nil {
			result.addError(f.field, f.name, err.Error(),
				"Use a bare file name such as line-explanations.json")
		}
	}

	if config.ExplanationsFile != "" && config.ExplanationsFile == config.LegacyExplanationsFile {
		result.addWarning("store.legacy_explanations_file", config.LegacyExplanationsFile,
			"legacy explanations file is the same as the canonical one, fallback is disabled")
	}
}

func validateServerConfigDetails(config *ServerConfig, result *ValidationResult) {
	// Port 0 lets the system assign a port
	if config.Port < 0 || config.Port > 65535 {
		result.addError("server.port", config.Port,
			fmt.Sprintf("port %d is not in valid range 0-65535", config.Port),
			"Common development ports: 3000, 8080, 8000")
	} else if config.Port > 0 && config.Port < 1024 {
		result.addWarning("server.port", config.Port, "port below 1024 requires elevated privileges")
	}

	if strings.ContainsAny(config.Host, ";&|$`()<>\"'\\ ") {
		result.addError("server.host", config.Host, "host contains invalid characters")
	}

	for _, origin := range config.AllowedOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			result.addError("server.allowed_origins", origin, "origin must include an http or https scheme",
				"Example: http://localhost:5173")
		}
		if origin == "*" {
			result.addWarning("server.allowed_origins", origin, "wildcard origin accepts every site")
		}
	}
}

func validateCacheConfigDetails(config *CacheConfig, result *ValidationResult) {
	if config.ListTTL < 0 {
		result.addError("cache.list_ttl", config.ListTTL, "list TTL cannot be negative",
			"Use 0 to disable listing cache")
	}
	if config.Debounce < 0 {
		result.addError("cache.debounce", config.Debounce, "debounce cannot be negative")
	}
	if config.Watch && config.Debounce == 0 {
		result.addWarning("cache.debounce", config.Debounce, "zero debounce refreshes the catalog on every file event")
	}
}

func validateLogConfigDetails(config *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.addError("log.level", config.Level, err.Error(),
			"Valid levels: debug, info, warn, error")
	}

	switch config.Format {
	case "text", "json":
	default:
		result.addError("log.format", config.Format, "unknown log format",
			"Valid formats: text, json")
	}
}
