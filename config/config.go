// Package config loads the runtime configuration of the signals module from
// the environment and optional .env files.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/yaoapp/kun/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Run modes.
const (
	Development = "development"
	Production  = "production"
)

// Config is the module configuration. Every field maps to one environment
// variable.
type Config struct {
	Mode       string `env:"SIGNALS_MODE" envDefault:"production"`
	Workers    int    `env:"SIGNALS_WORKERS" envDefault:"10"`
	QueueLimit int    `env:"SIGNALS_QUEUE_LIMIT" envDefault:"0"` // 0 = unbounded
	CacheSize  int    `env:"SIGNALS_CACHE_SIZE" envDefault:"10"`
	Priority   string `env:"SIGNALS_PRIORITY" envDefault:"NORMAL"`

	LogLevel      string `env:"SIGNALS_LOG_LEVEL" envDefault:"info"`
	LogFormat     string `env:"SIGNALS_LOG_FORMAT" envDefault:"text"`
	LogFile       string `env:"SIGNALS_LOG_FILE"` // empty = stdout
	LogMaxSize    int    `env:"SIGNALS_LOG_MAX_SIZE" envDefault:"100"`
	LogMaxBackups int    `env:"SIGNALS_LOG_MAX_BACKUPS" envDefault:"3"`
	LogMaxAge     int    `env:"SIGNALS_LOG_MAX_AGE" envDefault:"28"`
}

// Conf is the process configuration, loaded at init.
var Conf Config

func init() {
	c, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "signals: config: %v\n", err)
	}
	Conf = c
}

// Load reads the given .env files (".env" when none are given; missing files
// are skipped) and then parses the environment.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return defaults(), fmt.Errorf("config: load %s: %w", file, err)
		}
	}

	var c Config
	if err := env.Parse(&c); err != nil {
		return defaults(), fmt.Errorf("config: %w", err)
	}
	return c, nil
}

func defaults() Config {
	return Config{
		Mode:          Production,
		Workers:       10,
		CacheSize:     10,
		Priority:      "NORMAL",
		LogLevel:      "info",
		LogFormat:     "text",
		LogMaxSize:    100,
		LogMaxBackups: 3,
		LogMaxAge:     28,
	}
}

// IsDevelopment reports whether the process runs in development mode.
func IsDevelopment() bool {
	return strings.EqualFold(Conf.Mode, Development)
}

// Setup applies the log settings of c to kun/log. The returned closer
// releases the log file, if any.
func Setup(c Config) (io.Closer, error) {
	switch strings.ToLower(c.LogFormat) {
	case "json":
		log.SetFormatter(log.JSON)
	case "", "text":
		log.SetFormatter(log.TEXT)
	default:
		return nil, fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}

	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	log.SetLevel(level)

	if c.LogFile == "" {
		log.SetOutput(os.Stdout)
		return io.NopCloser(nil), nil
	}

	out := &lumberjack.Logger{
		Filename:   c.LogFile,
		MaxSize:    c.LogMaxSize,
		MaxBackups: c.LogMaxBackups,
		MaxAge:     c.LogMaxAge,
	}
	log.SetOutput(out)
	return out, nil
}

func parseLevel(s string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return log.TraceLevel, nil
	case "debug":
		return log.DebugLevel, nil
	case "", "info":
		return log.InfoLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	case "fatal":
		return log.FatalLevel, nil
	case "panic":
		return log.PanicLevel, nil
	}
	return log.InfoLevel, fmt.Errorf("config: unknown log level %q", s)
}
