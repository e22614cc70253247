// Package main provides the vibe-rsid command-line tool.
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/inodb/vibe-rsid/internal/entrez"
	"github.com/inodb/vibe-rsid/internal/equation"
	"github.com/inodb/vibe-rsid/internal/vcf"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	configName = ".vibe-rsid.yaml"
	envPrefix  = "VIBE_RSID"
)

// Equation presets for the CES1 locus shipped as configuration defaults.
var defaultPresets = map[string]string{
	"ces1p1-ces1": "x + 55758218",
	"ces1a2-ces1": "55758218 + x if x < 2358 else 55834270 - (72745 - x) if x > 32634 else x",
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCode(err)
	}
	return ExitSuccess
}

// exitCode maps errors to exit codes: bad user input is a usage error.
func exitCode(err error) int {
	var usage *usageError
	switch {
	case errors.As(err, &usage),
		errors.Is(err, equation.ErrSyntax),
		errors.Is(err, entrez.ErrInvalidConfig),
		errors.Is(err, vcf.ErrInvalidFile):
		return ExitUsage
	default:
		return ExitError
	}
}

// usageError marks invalid flag combinations.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

type rootOptions struct {
	configFile string
	verbose    bool
	logger     *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{logger: zap.NewNop()}

	cmd := &cobra.Command{
		Use:   "vibe-rsid",
		Short: "Remap VCF positions and annotate dbSNP rsIDs",
		Long: `vibe-rsid rewrites the chromosome and position of VCF records with a
user-supplied equation, then looks up dbSNP rsIDs for the new positions
through NCBI E-utilities.`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(opts.configFile); err != nil {
				return err
			}
			opts.logger = newLogger(opts.verbose, cmd.ErrOrStderr())
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = opts.logger.Sync()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Config file (default ~/"+configName+")")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging")

	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newTransformCmd(opts))
	cmd.AddCommand(newEquationCmd())
	cmd.AddCommand(newCacheCmd(opts))
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// initConfig resets viper and loads defaults, the config file and the
// environment. A missing default config file is not an error.
func initConfig(path string) error {
	viper.Reset()
	setDefaults()

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", path, err)
		}
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	viper.SetConfigFile(filepath.Join(home, configName))
	if err := viper.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

func setDefaults() {
	d := entrez.DefaultConfig()
	viper.SetDefault("entrez.tool", d.Tool)
	viper.SetDefault("entrez.base_url", d.BaseURL)
	viper.SetDefault("entrez.workers", d.MaxConcurrency)
	viper.SetDefault("entrez.min_delay", d.MinDelay)
	viper.SetDefault("entrez.max_retries", d.MaxRetries)
	viper.SetDefault("entrez.backoff", d.BaseBackoff)
	viper.SetDefault("entrez.backoff_factor", d.BackoffFactor)
	viper.SetDefault("entrez.max_backoff", d.MaxBackoff)
	viper.SetDefault("entrez.request_timeout", d.RequestTimeout)

	viper.SetDefault("output.format", "RefSeq")
	viper.SetDefault("output.qual_threshold", 20.0)

	if home, err := os.UserHomeDir(); err == nil {
		viper.SetDefault("cache.path", filepath.Join(home, ".vibe-rsid", "lookups.duckdb"))
	}

	for name, text := range defaultPresets {
		viper.SetDefault("presets."+name, text)
	}
}

// entrezConfig builds the client configuration from viper.
func entrezConfig() entrez.Config {
	return entrez.Config{
		Email:          viper.GetString("entrez.email"),
		APIKey:         viper.GetString("entrez.api_key"),
		Tool:           viper.GetString("entrez.tool"),
		BaseURL:        viper.GetString("entrez.base_url"),
		MaxConcurrency: viper.GetInt("entrez.workers"),
		MinDelay:       viper.GetDuration("entrez.min_delay"),
		MaxRetries:     viper.GetInt("entrez.max_retries"),
		BaseBackoff:    viper.GetDuration("entrez.backoff"),
		BackoffFactor:  viper.GetFloat64("entrez.backoff_factor"),
		MaxBackoff:     viper.GetDuration("entrez.max_backoff"),
		RequestTimeout: viper.GetDuration("entrez.request_timeout"),
	}
}

// newLogger builds a console logger on w: debug level when verbose,
// warnings only otherwise.
func newLogger(verbose bool, w io.Writer) *zap.Logger {
	level := zapcore.WarnLevel
	encCfg := zap.NewProductionEncoderConfig()
	if verbose {
		level = zapcore.DebugLevel
		encCfg = zap.NewDevelopmentEncoderConfig()
	}
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
	return zap.New(core)
}
