package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "release.max_otp_retries")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// branchPrefixRegex allows path-like prefixes such as "release/" or "rel-"
var branchPrefixRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_./-]*$`)

// refNameRegex is a conservative subset of git's ref name rules
var refNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_./-]*$`)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateGit()...)
	errors = append(errors, c.validateRelease()...)
	errors = append(errors, c.validateVersion()...)
	errors = append(errors, c.validateRegistry()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateGit validates the GitConfig
func (c *Config) validateGit() []ValidationError {
	var errors []ValidationError

	if !refNameRegex.MatchString(c.Git.Remote) {
		errors = append(errors, ValidationError{
			Field:   "git.remote",
			Value:   c.Git.Remote,
			Message: "must be a valid remote name",
		})
	}

	for i, name := range c.Git.DefaultBranchCandidates {
		if !refNameRegex.MatchString(name) {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("git.default_branch_candidates[%d]", i),
				Value:   name,
				Message: "must be a valid branch name",
			})
		}
	}

	if c.Git.FallbackDefaultBranch != "" && !refNameRegex.MatchString(c.Git.FallbackDefaultBranch) {
		errors = append(errors, ValidationError{
			Field:   "git.fallback_default_branch",
			Value:   c.Git.FallbackDefaultBranch,
			Message: "must be empty or a valid branch name",
		})
	}

	return errors
}

// validateRelease validates the ReleaseConfig
func (c *Config) validateRelease() []ValidationError {
	var errors []ValidationError

	if !branchPrefixRegex.MatchString(c.Release.BranchPrefix) {
		errors = append(errors, ValidationError{
			Field:   "release.branch_prefix",
			Value:   c.Release.BranchPrefix,
			Message: "must start with a letter and contain only letters, digits, '_', '-', '.', '/'",
		})
	}

	if c.Release.MaxOTPRetries < 1 || c.Release.MaxOTPRetries > 10 {
		errors = append(errors, ValidationError{
			Field:   "release.max_otp_retries",
			Value:   c.Release.MaxOTPRetries,
			Message: "must be between 1 and 10",
		})
	}

	if strings.Count(c.Release.MergeMessage, "%s") != 1 {
		errors = append(errors, ValidationError{
			Field:   "release.merge_message",
			Value:   c.Release.MergeMessage,
			Message: "must contain exactly one %s placeholder for the version",
		})
	}

	return errors
}

// validateVersion validates the VersionConfig
func (c *Config) validateVersion() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidStrategies(), c.Version.Strategy) {
		errors = append(errors, ValidationError{
			Field:   "version.strategy",
			Value:   c.Version.Strategy,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidStrategies(), ", ")),
		})
	}

	return errors
}

// validateRegistry validates the RegistryConfig
func (c *Config) validateRegistry() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Registry.Command) == "" {
		errors = append(errors, ValidationError{
			Field:   "registry.command",
			Value:   c.Registry.Command,
			Message: "must not be empty",
		})
	}

	for _, arg := range c.Registry.DryRunArgs {
		if arg == "--yes" || arg == "-y" {
			errors = append(errors, ValidationError{
				Field:   "registry.dry_run_args",
				Value:   arg,
				Message: "must not skip confirmation; the report command would modify the repository",
			})
		}
	}

	for _, arg := range c.Registry.PublishArgs {
		if arg == "--otp" || strings.HasPrefix(arg, "--otp=") {
			errors = append(errors, ValidationError{
				Field:   "registry.publish_args",
				Value:   arg,
				Message: "must not contain --otp; the code is supplied per attempt",
			})
		}
	}

	if c.Registry.Manifest == "" && c.Registry.PackageManifest == "" {
		errors = append(errors, ValidationError{
			Field:   "registry.manifest",
			Value:   "",
			Message: "at least one of registry.manifest or registry.package_manifest is required",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be non-negative",
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
