package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete relpub configuration
type Config struct {
	Git       GitConfig       `mapstructure:"git" yaml:"git"`
	Release   ReleaseConfig   `mapstructure:"release" yaml:"release"`
	Version   VersionConfig   `mapstructure:"version" yaml:"version"`
	Registry  RegistryConfig  `mapstructure:"registry" yaml:"registry"`
	Preflight PreflightConfig `mapstructure:"preflight" yaml:"preflight"`
	Prompt    PromptConfig    `mapstructure:"prompt" yaml:"prompt"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// GitConfig controls how branches are resolved
type GitConfig struct {
	// Remote is the remote that is fetched from and pushed to (default: "origin")
	Remote string `mapstructure:"remote" yaml:"remote"`
	// DefaultBranchCandidates are tried in order when the remote HEAD is unknown
	DefaultBranchCandidates []string `mapstructure:"default_branch_candidates" yaml:"default_branch_candidates"`
	// FallbackDefaultBranch is used, with a warning, when no candidate exists.
	// Empty makes an undetectable default branch fatal. (default: "main")
	FallbackDefaultBranch string `mapstructure:"fallback_default_branch" yaml:"fallback_default_branch"`
}

// ReleaseConfig controls the release branch and the publish loop
type ReleaseConfig struct {
	// BranchPrefix is prepended to "v{version}" to name release branches (default: "release/")
	BranchPrefix string `mapstructure:"branch_prefix" yaml:"branch_prefix"`
	// MaxOTPRetries bounds the number of rejected publish attempts (default: 3)
	MaxOTPRetries int `mapstructure:"max_otp_retries" yaml:"max_otp_retries"`
	// MergeMessage is the merge-back commit message; %s is replaced by the version
	MergeMessage string `mapstructure:"merge_message" yaml:"merge_message"`
}

// VersionConfig controls how the target version is chosen
type VersionConfig struct {
	// Strategy is "report" (parse the dry-run report) or "interactive" (prompt for a bump)
	Strategy string `mapstructure:"strategy" yaml:"strategy"`
}

// RegistryConfig controls the publish tool invocation
type RegistryConfig struct {
	// Command is the publish tool binary (default: "lerna")
	Command string `mapstructure:"command" yaml:"command"`
	// DryRunArgs produce the version-change report. The command must not
	// change the repository: relpub declines the tool's confirmation prompt
	// on stdin, so the args must not include --yes.
	DryRunArgs []string `mapstructure:"dry_run_args" yaml:"dry_run_args"`
	// PublishArgs are passed before the bump and --otp arguments
	PublishArgs []string `mapstructure:"publish_args" yaml:"publish_args"`
	// Manifest holds the monorepo version (default: "lerna.json")
	Manifest string `mapstructure:"manifest" yaml:"manifest"`
	// PackageManifest is read when Manifest has no version (default: "package.json")
	PackageManifest string `mapstructure:"package_manifest" yaml:"package_manifest"`
	// VerifyPackage, when set, is checked with "npm view" after publishing
	VerifyPackage string `mapstructure:"verify_package" yaml:"verify_package"`
}

// PreflightConfig controls the optional pre-flight script
type PreflightConfig struct {
	// Script is run with bash before any git inspection; nonzero exit aborts
	Script string `mapstructure:"script" yaml:"script"`
}

// PromptConfig controls terminal prompts
type PromptConfig struct {
	// MaskOTP hides OTP input when stdin is a terminal (default: false)
	MaskOTP bool `mapstructure:"mask_otp" yaml:"mask_otp"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether the JSON debug log is written (default: false)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is where debug.log is written; empty writes to stderr
	Dir string `mapstructure:"dir" yaml:"dir"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
}

// Strategy values for VersionConfig.Strategy
const (
	StrategyReport      = "report"
	StrategyInteractive = "interactive"
)

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Git: GitConfig{
			Remote:                  "origin",
			DefaultBranchCandidates: []string{"main", "master"},
			FallbackDefaultBranch:   "main",
		},
		Release: ReleaseConfig{
			BranchPrefix:  "release/",
			MaxOTPRetries: 3,
			MergeMessage:  "chore: merge release %s",
		},
		Version: VersionConfig{
			Strategy: StrategyReport,
		},
		Registry: RegistryConfig{
			Command:         "lerna",
			DryRunArgs:      []string{"version", "--no-git-tag-version", "--no-push"},
			PublishArgs:     []string{"publish", "--yes"},
			Manifest:        "lerna.json",
			PackageManifest: "package.json",
			VerifyPackage:   "",
		},
		Preflight: PreflightConfig{
			Script: "",
		},
		Prompt: PromptConfig{
			MaskOTP: false,
		},
		Logging: LoggingConfig{
			Enabled:    false,
			Level:      "info",
			Dir:        "",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Git defaults
	viper.SetDefault("git.remote", defaults.Git.Remote)
	viper.SetDefault("git.default_branch_candidates", defaults.Git.DefaultBranchCandidates)
	viper.SetDefault("git.fallback_default_branch", defaults.Git.FallbackDefaultBranch)

	// Release defaults
	viper.SetDefault("release.branch_prefix", defaults.Release.BranchPrefix)
	viper.SetDefault("release.max_otp_retries", defaults.Release.MaxOTPRetries)
	viper.SetDefault("release.merge_message", defaults.Release.MergeMessage)

	// Version defaults
	viper.SetDefault("version.strategy", defaults.Version.Strategy)

	// Registry defaults
	viper.SetDefault("registry.command", defaults.Registry.Command)
	viper.SetDefault("registry.dry_run_args", defaults.Registry.DryRunArgs)
	viper.SetDefault("registry.publish_args", defaults.Registry.PublishArgs)
	viper.SetDefault("registry.manifest", defaults.Registry.Manifest)
	viper.SetDefault("registry.package_manifest", defaults.Registry.PackageManifest)
	viper.SetDefault("registry.verify_package", defaults.Registry.VerifyPackage)

	viper.SetDefault("preflight.script", defaults.Preflight.Script)
	viper.SetDefault("prompt.mask_otp", defaults.Prompt.MaskOTP)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom is Load against an explicit viper instance.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "relpub")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".relpub"
	}
	return filepath.Join(home, ".config", "relpub")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidStrategies returns the list of valid version strategies
func ValidStrategies() []string {
	return []string{StrategyReport, StrategyInteractive}
}
