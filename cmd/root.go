package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"dwhctl/internal/config"
	"dwhctl/internal/observability"
	"dwhctl/internal/ui"
	"dwhctl/pkg/errors"
	"dwhctl/pkg/models"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
	verbose   bool
	quiet     bool
	noColor   bool

	// errLog receives failures once the configured logger exists
	errLog logrus.FieldLogger = discardLogger()

	rootCmd = &cobra.Command{
		Use:   "dwhctl",
		Short: "Provision a Redshift warehouse and load the song play data set",
		Long: `dwhctl provisions a Redshift cluster, recreates the star schema, copies the
song and event logs from S3 into staging tables, populates the fact and
dimension tables and verifies the resulting row counts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the CLI and returns the process exit code
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		errors.NewErrorHandler(errLog, os.Stderr, ui.ColorEnabled()).Handle(err)
	}
	return errors.ExitCode(err)
}

func init() {
	rootCmd.SetGlobalNormalizationFunc(wordSepNormalizeFunc)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default $DWH_CONFIG or ./dwh.cfg)")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&logFormat, "log-format", "", "log format: text or json")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	flags.BoolVarP(&quiet, "quiet", "q", false, "only print errors")
	flags.BoolVar(&noColor, "no-color", false, "disable colored output")
}

// env is what every command needs after startup
type env struct {
	cfg   *models.Config
	log   logrus.FieldLogger
	ui    *ui.UI
	close func() error
}

// setup loads the configuration and builds the logger. Flags override the
// log settings from the file.
func setup(cmd *cobra.Command) (*env, error) {
	if noColor {
		ui.SetColor(false)
	}

	cfg, err := config.Load(config.GetConfigFile(cfgFile), config.NewSecretResolver())
	if err != nil {
		return nil, err
	}

	switch {
	case logLevel != "":
		cfg.Log.Level = logLevel
	case verbose:
		cfg.Log.Level = "debug"
	case quiet:
		cfg.Log.Level = "warn"
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}

	lc := observability.LoggerConfigFrom(cfg.Log, Version)
	lc.Output = cmd.ErrOrStderr()
	logger, closer, err := observability.NewLogger(lc)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Invalid logging configuration").
			WithContext("level", cfg.Log.Level).
			WithContext("format", cfg.Log.Format)
	}
	log := observability.ServiceLogger(logger, lc)
	errLog = log

	return &env{
		cfg:   cfg,
		log:   log,
		ui:    ui.NewUI(cmd.OutOrStdout(), verbose, quiet),
		close: closer,
	}, nil
}

// wordSepNormalizeFunc accepts --log_level for --log-level, matching the
// underscore keys of the config file
func wordSepNormalizeFunc(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
