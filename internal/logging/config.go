package logging

import (
	"io"
	"log/syslog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel     = "SVCGATE_LOG_LEVEL"
	EnvLogTimestamp = "SVCGATE_LOG_TIMESTAMP"
	EnvLogNoColor   = "SVCGATE_LOG_NOCOLOR"
	EnvLogStderr    = "SVCGATE_LOG_STDERR"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Config is the resolved process-wide logger configuration.
type Config struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
	// Stderr forces console output to stderr instead of syslog.
	Stderr bool
	// SyslogTag is the program tag attached to every syslog record.
	SyslogTag string
	// Output overrides the sink entirely when set.
	Output io.Writer
}

var (
	configureOnce sync.Once
	dialSyslog    = func(tag string) (io.Writer, error) {
		return syslog.New(syslog.LOG_DAEMON|syslog.LOG_INFO, tag)
	}
)

func ConfigureRuntime(syslogTag string, level string) zerolog.Logger {
	cfg := DefaultConfig(ProfileRuntime)
	cfg.SyslogTag = syslogTag
	if lvl, ok := ParseLevel(level); ok {
		cfg.Level = lvl
	}
	return Configure(cfg)
}

func ConfigureTests() zerolog.Logger {
	return Configure(DefaultConfig(ProfileTest))
}

// Configure installs the process-wide logger exactly once and returns it.
// Later calls return the already-installed logger unchanged.
func Configure(cfg Config) zerolog.Logger {
	configureOnce.Do(func() {
		applyEnvOverrides(&cfg)
		log.Logger = build(cfg)
		zerolog.SetGlobalLevel(cfg.Level)
	})
	return log.Logger
}

func DefaultConfig(profile Profile) Config {
	switch profile {
	case ProfileTest:
		return Config{
			Level:     zerolog.DebugLevel,
			Timestamp: false,
			Stderr:    true,
			SyslogTag: "svcgate-test",
		}
	default:
		return Config{
			Level:     zerolog.InfoLevel,
			Timestamp: true,
			NoColor:   true,
			SyslogTag: "svcgate",
		}
	}
}

func build(cfg Config) zerolog.Logger {
	out := sink(cfg)
	ctx := zerolog.New(out).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	return ctx.Logger().Level(cfg.Level)
}

func sink(cfg Config) io.Writer {
	if cfg.Output != nil {
		return cfg.Output
	}
	if !cfg.Stderr {
		w, err := dialSyslog(cfg.SyslogTag)
		if err == nil {
			if sw, ok := w.(zerolog.SyslogWriter); ok {
				return zerolog.SyslogLevelWriter(sw)
			}
			return w
		}
	}
	return zerolog.ConsoleWriter{
		Out:        os.Stderr,
		NoColor:    cfg.NoColor,
		TimeFormat: time.RFC3339,
	}
}

func applyEnvOverrides(cfg *Config) {
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogStderr)); ok {
		cfg.Stderr = v
	}
}

// ParseLevel accepts the level names used in config files and the environment.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace", "diagnostics":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none", "inactive":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
