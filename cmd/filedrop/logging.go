package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"filedrop/internal/config"
)

const (
	logLevelEnvKey  = "FILEDROP_LOG_LEVEL"
	logFormatEnvKey = "FILEDROP_LOG_FORMAT"
)

type logSource int

const (
	fromDefault logSource = iota
	fromConfig
	fromEnv
	fromFlag
)

func (s logSource) String() string {
	switch s {
	case fromFlag:
		return "flag"
	case fromEnv:
		return "env"
	case fromConfig:
		return "config"
	default:
		return "default"
	}
}

// levelChoice is the winning log level candidate and where it came from.
type levelChoice struct {
	raw    string
	source logSource
}

// chooseLogLevel picks the first non-blank candidate in flag, env, config order.
func chooseLogLevel(flagLevel, envLevel, configLevel string) levelChoice {
	candidates := []levelChoice{
		{raw: flagLevel, source: fromFlag},
		{raw: envLevel, source: fromEnv},
		{raw: configLevel, source: fromConfig},
	}
	for _, c := range candidates {
		if strings.TrimSpace(c.raw) != "" {
			return c
		}
	}
	return levelChoice{source: fromDefault}
}

// configureLoggerForCLI installs the default logger and returns a warning
// line when an env or config level had to be ignored.
func configureLoggerForCLI(flagLevel, configLevel string) (string, error) {
	choice := chooseLogLevel(flagLevel, os.Getenv(logLevelEnvKey), configLevel)

	level, err := parseLogLevel(choice.raw)
	warning := ""
	if err != nil {
		switch choice.source {
		case fromFlag:
			return "", fmt.Errorf("invalid --log-level %q", flagLevel)
		case fromEnv:
			warning = fmt.Sprintf("warning: invalid %s=%q; defaulting to %s", logLevelEnvKey, choice.raw, config.DefaultLogLevel)
		case fromConfig:
			warning = fmt.Sprintf("warning: invalid log_level=%q; defaulting to %s", choice.raw, config.DefaultLogLevel)
		}
		level = slog.LevelInfo
	}

	slog.SetDefault(newLogger(os.Stderr, level, os.Getenv(logFormatEnvKey)))
	return warning, nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	value := strings.TrimSpace(raw)
	switch {
	case value == "":
		return slog.LevelInfo, nil
	case strings.EqualFold(value, "warning"):
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

// newLogger writes text records unless format is "json".
func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
