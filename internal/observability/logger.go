package observability

import (
	"fmt"
	"io"
	"os"
	"strings"

	"dwhctl/internal/common"
	"dwhctl/pkg/models"

	"github.com/sirupsen/logrus"
)

// LoggerConfig contains logger configuration
type LoggerConfig struct {
	Level   string
	Format  string // "text" or "json"
	Output  io.Writer
	File    string
	Service string
	Version string
}

// LoggerConfigFrom builds a LoggerConfig from the loaded configuration
func LoggerConfigFrom(cfg models.Log, version string) LoggerConfig {
	return LoggerConfig{
		Level:   cfg.Level,
		Format:  cfg.Format,
		File:    cfg.File,
		Service: "dwhctl",
		Version: version,
	}
}

// NewLogger creates the process logger. The returned closer releases the
// log file when one is configured.
func NewLogger(config LoggerConfig) (*logrus.Logger, func() error, error) {
	logger := logrus.New()
	closer := func() error { return nil }

	level := config.Level
	if level == "" {
		level = "info"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, closer, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger.SetLevel(parsed)

	switch strings.ToLower(config.Format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, closer, fmt.Errorf("invalid log format %q", config.Format)
	}

	output := config.Output
	if output == nil {
		output = os.Stderr
	}

	if config.File != "" {
		path, err := common.CleanPath(config.File)
		if err != nil {
			return nil, closer, err
		}
		file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, common.FilePermissionSecure)
		if err != nil {
			return nil, closer, fmt.Errorf("failed to open log file: %w", err)
		}
		output = io.MultiWriter(output, file)
		closer = file.Close
	}
	logger.SetOutput(output)

	return logger, closer, nil
}

// ServiceLogger returns an entry carrying the service identity fields
func ServiceLogger(logger *logrus.Logger, config LoggerConfig) logrus.FieldLogger {
	fields := logrus.Fields{}
	if config.Service != "" {
		fields["service"] = config.Service
	}
	if config.Version != "" {
		fields["version"] = config.Version
	}
	return logger.WithFields(fields)
}
