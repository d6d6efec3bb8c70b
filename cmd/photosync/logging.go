package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"photosync/internal/config"
)

const (
	logLevelEnvKey  = "PHOTOSYNC_LOG_LEVEL"
	logFormatEnvKey = "PHOTOSYNC_LOG_FORMAT"
)

var logOutput io.Writer = os.Stderr

// logSettings carries the raw level and format from one source.
type logSettings struct {
	Level  string
	Format string
}

// logOption resolves one logger setting across flag, env and config.
type logOption struct {
	flagName  string
	configKey string
	envKey    string
	fallback  string
	validate  func(string) error
}

var (
	levelOption = logOption{
		flagName:  "--log-level",
		configKey: "log_level",
		envKey:    logLevelEnvKey,
		fallback:  config.DefaultLogLevel,
		validate: func(raw string) error {
			_, err := parseLogLevel(raw)
			return err
		},
	}
	formatOption = logOption{
		flagName:  "--log-format",
		configKey: "log_format",
		envKey:    logFormatEnvKey,
		fallback:  config.DefaultLogFormat,
		validate: func(raw string) error {
			_, err := parseLogFormat(raw)
			return err
		},
	}
)

// resolve picks the first non-blank source. A bad flag is an error; a bad
// env or config value falls back with a warning.
func (o logOption) resolve(flagValue, configValue string) (string, string, error) {
	raw, source := selectedLogSetting(flagValue, os.Getenv(o.envKey), configValue)
	if err := o.validate(raw); err == nil {
		return raw, "", nil
	}
	switch source {
	case "flag":
		return "", "", fmt.Errorf("invalid %s %q", o.flagName, flagValue)
	case "env":
		return o.fallback, fmt.Sprintf("warning: invalid %s=%q; defaulting to %s", o.envKey, raw, o.fallback), nil
	default:
		return o.fallback, fmt.Sprintf("warning: invalid %s=%q; defaulting to %s", o.configKey, raw, o.fallback), nil
	}
}

func configureLoggerForCLI(flags, configured logSettings) ([]string, error) {
	var warnings []string

	level, warning, err := levelOption.resolve(flags.Level, configured.Level)
	if err != nil {
		return nil, err
	}
	if warning != "" {
		warnings = append(warnings, warning)
	}

	format, warning, err := formatOption.resolve(flags.Format, configured.Format)
	if err != nil {
		return nil, err
	}
	if warning != "" {
		warnings = append(warnings, warning)
	}

	logger, err := newLogger(logOutput, level, format)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return warnings, nil
}

func selectedLogSetting(flagValue, envValue, configValue string) (string, string) {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue, "flag"
	}
	if strings.TrimSpace(envValue) != "" {
		return envValue, "env"
	}
	if strings.TrimSpace(configValue) != "" {
		return configValue, "config"
	}
	return "", "default"
}

func parseLogLevel(raw string) (slog.Level, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		value = config.DefaultLogLevel
	}
	if strings.EqualFold(value, "warning") {
		value = "warn"
	}

	if numeric, err := strconv.Atoi(value); err == nil {
		return slog.Level(numeric), nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", raw)
	}
	return level, nil
}

func parseLogFormat(raw string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "":
		return config.DefaultLogFormat, nil
	case config.LogFormatText, config.LogFormatJSON:
		return value, nil
	default:
		return "", fmt.Errorf("invalid log format %q", raw)
	}
}

func newLogger(w io.Writer, rawLevel, rawFormat string) (*slog.Logger, error) {
	level, err := parseLogLevel(rawLevel)
	if err != nil {
		return nil, err
	}
	format, err := parseLogFormat(rawFormat)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
