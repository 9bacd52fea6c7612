package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/svcgate/internal/auth"
	"github.com/danmuck/svcgate/internal/protocol/session"
)

const DefaultPath = "/etc/svcgate/svcgate.toml"

// Config is the gatekeeper's resolved runtime configuration.
type Config struct {
	VerifierPath    string
	VerifierArgs    []string
	Session         session.Config
	SyslogTag       string
	LogLevel        string
	MetricsTextfile string
}

type fileConfig struct {
	VerifierPath        string   `toml:"verifier_path"`
	VerifierArgs        []string `toml:"verifier_args"`
	IOTimeout           string   `toml:"io_timeout"`
	MaxAccountBytes     int64    `toml:"max_account_bytes"`
	MaxSignedTokenBytes int64    `toml:"max_signed_token_bytes"`
	MaxArgumentBytes    int64    `toml:"max_argument_bytes"`
	MaxArguments        int      `toml:"max_arguments"`
	LogTagPrefix        string   `toml:"log_tag_prefix"`
	SupportContact      string   `toml:"support_contact"`
	SyslogTag           string   `toml:"syslog_tag"`
	LogLevel            string   `toml:"log_level"`
	MetricsTextfile     string   `toml:"metrics_textfile"`
}

func Default() Config {
	return Config{
		VerifierPath: auth.DefaultVerifierPath,
		Session:      session.DefaultConfig(),
		SyslogTag:    "svcgate",
		LogLevel:     "info",
	}
}

// Load reads path and overlays every defined key onto Default().
// A missing file is an error only when required is set.
func Load(path string, required bool) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config parse failed (%s): unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("verifier_path") {
		cfg.VerifierPath = strings.TrimSpace(raw.VerifierPath)
	}
	if meta.IsDefined("verifier_args") {
		cfg.VerifierArgs = normalizeArgs(raw.VerifierArgs)
	}
	if meta.IsDefined("io_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.IOTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse io_timeout: %w", err)
		}
		cfg.Session.IOTimeout = d
	}
	if meta.IsDefined("max_account_bytes") {
		if cfg.Session.MaxAccountBytes, err = toUint32("max_account_bytes", raw.MaxAccountBytes); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("max_signed_token_bytes") {
		if cfg.Session.MaxSignedTokenBytes, err = toUint32("max_signed_token_bytes", raw.MaxSignedTokenBytes); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("max_argument_bytes") {
		if cfg.Session.MaxArgumentBytes, err = toUint32("max_argument_bytes", raw.MaxArgumentBytes); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("max_arguments") {
		cfg.Session.MaxArguments = raw.MaxArguments
	}
	if meta.IsDefined("log_tag_prefix") {
		cfg.Session.TagPrefix = strings.TrimSpace(raw.LogTagPrefix)
	}
	if meta.IsDefined("support_contact") {
		cfg.Session.SupportContact = strings.TrimSpace(raw.SupportContact)
	}
	if meta.IsDefined("syslog_tag") {
		cfg.SyslogTag = strings.TrimSpace(raw.SyslogTag)
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("metrics_textfile") {
		cfg.MetricsTextfile = strings.TrimSpace(raw.MetricsTextfile)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.VerifierPath) == "" {
		return fmt.Errorf("verifier_path is required")
	}
	if strings.TrimSpace(c.SyslogTag) == "" {
		return fmt.Errorf("syslog_tag is required")
	}
	return c.Session.Validate()
}

func toUint32(key string, v int64) (uint32, error) {
	if v <= 0 || v > int64(^uint32(0)>>1) {
		return 0, fmt.Errorf("%s out of range: %d", key, v)
	}
	return uint32(v), nil
}

func normalizeArgs(in []string) []string {
	out := make([]string, 0, len(in))
	for _, arg := range in {
		v := strings.TrimSpace(arg)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
