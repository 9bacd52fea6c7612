package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/danmuck/svcgate/internal/config"
)

func main() {
	output := pflag.String("output", "svcgate.toml", "output path for config template")
	validate := pflag.Bool("validate", false, "validate an existing config file")
	input := pflag.String("input", config.DefaultPath, "config path for validation")
	force := pflag.Bool("force", false, "overwrite existing config file")
	pflag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Str("cmd", "configgen").Logger()

	if *validate {
		cfg, err := config.Load(*input, true)
		if err != nil {
			logger.Fatal().Err(err).Msg("validation failed")
		}
		logger.Info().
			Str("path", *input).
			Str("verifier", cfg.VerifierPath).
			Dur("io_timeout", cfg.Session.IOTimeout).
			Msg("validated config")
		return
	}

	if err := config.WriteTemplate(*output, *force); err != nil {
		logger.Fatal().Err(err).Msg("write template failed")
	}
	logger.Info().Str("path", *output).Msg("wrote config template")
}
