package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/Iron-Ham/relpub/internal/config"
	"github.com/Iron-Ham/relpub/internal/logging"
	"github.com/Iron-Ham/relpub/internal/prompt"
	"github.com/Iron-Ham/relpub/internal/registry"
	"github.com/Iron-Ham/relpub/internal/release"
	"github.com/Iron-Ham/relpub/internal/runner"
	"github.com/Iron-Ham/relpub/internal/ui"
	"github.com/Iron-Ham/relpub/internal/vcs"
)

var rootCmd = &cobra.Command{
	Use:   "relpub",
	Short: "Publish an npm monorepo from a release branch",
	Long: `relpub publishes an npm monorepo through lerna from an ephemeral
release branch, retries the publish on rejected one-time passwords, and
merges the release back into the default branch.

Nothing in the repository changes until you confirm the publish. If the
publish or the merge-back fails, the release branch is kept and the exact
commands to finish by hand are printed.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runPublish,
}

// Execute runs the root command. SIGINT cancels the context passed to every
// external command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/relpub/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	rootCmd.Flags().Bool("dry-run", false, "plan the release and stop before creating a branch or publishing")
	rootCmd.Flags().BoolP("interactive", "i", false, "choose the version bump from a menu instead of the dry-run report")
	rootCmd.Flags().String("repo", "", "repository to publish (default is the current directory)")
	rootCmd.Flags().Bool("no-release-branch", false, "no effect; releases always use a release branch")
	_ = rootCmd.Flags().MarkDeprecated("no-release-branch", "a release branch is always used")
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/relpub")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("RELPUB")
	// e.g., RELPUB_RELEASE_MAX_OTP_RETRIES for release.max_otp_retries
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

func runPublish(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	interactive, _ := cmd.Flags().GetBool("interactive")
	repoDir, err := resolveRepoDir(cmd)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	in := cmd.InOrStdin()
	out := ui.New(cmd.OutOrStdout())

	if cfg.Prompt.MaskOTP && !dryRun && !isTerminal(in) {
		out.Warning("stdin is not a terminal; OTP input will not be hidden")
	}

	r := runner.New()
	prompter := prompt.New(in, out).WithMask(cfg.Prompt.MaskOTP)
	reg := registry.NewClient(repoDir, cfg.Registry, r).
		WithStdin(prompter.Stdin).
		WithStream(cmd.OutOrStdout())

	p := release.New(cfg, release.Deps{
		Repo:     vcs.NewClientWithRunner(repoDir, r),
		Registry: reg,
		Prompter: prompter,
		Out:      out,
		Logger:   logger,
	}, release.Options{
		DryRun:      dryRun,
		Interactive: interactive,
	})

	return p.Run(cmd.Context())
}

func resolveRepoDir(cmd *cobra.Command) (string, error) {
	dir, _ := cmd.Flags().GetString("repo")
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
		return cwd, nil
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("invalid repository path %s: %w", dir, err)
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return "", fmt.Errorf("repository path %s is not a directory", dir)
	}
	return abs, nil
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NopLogger(), nil
	}

	return logging.NewLoggerWithRotation(cfg.Logging.Dir, cfg.Logging.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
}

func isTerminal(r any) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
