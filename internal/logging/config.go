package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Config selects the level, encoding and destination of a Logger. The env
// tags let it be embedded in a service configuration parsed from the
// environment.
type Config struct {
	Level  string `env:"LOG_LEVEL" yaml:"level"`
	Format string `env:"LOG_FORMAT" envDefault:"json" yaml:"format"`
	// Output is stdout, stderr, discard or a file path opened for append.
	Output string `env:"LOG_OUTPUT" envDefault:"stderr" yaml:"output"`
}

// DefaultConfig logs JSON at info level to stderr.
func DefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: "json",
		Output: "stderr",
	}
}

// Validate reports every unusable field at once. An empty Level or Format
// is valid and selects the default.
func (c *Config) Validate() error {
	var result *multierror.Error
	if _, err := ParseLevel(c.Level); err != nil {
		result = multierror.Append(result, err)
	}
	if _, err := ParseFormat(c.Format); err != nil {
		result = multierror.Append(result, err)
	}
	if strings.TrimSpace(c.Output) == "" {
		result = multierror.Append(result, fmt.Errorf("log output is required"))
	}
	return result.ErrorOrNil()
}

// NewLogger builds a Logger from cfg, nil meaning DefaultConfig. File
// outputs stay open for the life of the process.
func NewLogger(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, _ := ParseLevel(cfg.Level)
	format, _ := ParseFormat(cfg.Format)
	output, err := openOutput(cfg.Output)
	if err != nil {
		return nil, fmt.Errorf("opening log output: %w", err)
	}
	return New(level, output).WithFormat(format), nil
}

// ParseFormat accepts json (the default) or text, console being an alias
// for text.
func ParseFormat(format string) (Format, error) {
	switch strings.ToLower(format) {
	case "", "json":
		return JSONFormat, nil
	case "text", "console":
		return TextFormat, nil
	}
	return "", fmt.Errorf("unknown log format %q", format)
}

// ParseLevel maps a case-insensitive level name to a LogLevel. Empty
// selects InfoLevel.
func ParseLevel(level string) (LogLevel, error) {
	switch strings.ToUpper(level) {
	case "":
		return InfoLevel, nil
	case "DEBUG":
		return DebugLevel, nil
	case "INFO":
		return InfoLevel, nil
	case "WARN", "WARNING":
		return WarnLevel, nil
	case "ERROR":
		return ErrorLevel, nil
	case "FATAL":
		return FatalLevel, nil
	}
	return "", fmt.Errorf("unknown log level %q", level)
}

func openOutput(output string) (io.Writer, error) {
	switch output {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	case "discard":
		return io.Discard, nil
	}
	return os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}
