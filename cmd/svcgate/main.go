package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"github.com/danmuck/svcgate/internal/auth"
	"github.com/danmuck/svcgate/internal/config"
	"github.com/danmuck/svcgate/internal/gateway"
	"github.com/danmuck/svcgate/internal/handoff"
	"github.com/danmuck/svcgate/internal/logging"
	"github.com/danmuck/svcgate/internal/observability"
	"github.com/danmuck/svcgate/internal/resolve"
)

var errInvalidArguments = errors.New("svcgate: invalid arguments")

type invocation struct {
	basePath       string
	configPath     string
	configRequired bool
	logLevel       string
}

func parseArgs(args []string) (invocation, error) {
	fs := pflag.NewFlagSet("svcgate", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configPath := fs.String("config", config.DefaultPath, "path to svcgate.toml")
	logLevel := fs.String("log-level", "", "override log_level from the config file")
	inv := invocation{configPath: config.DefaultPath}
	if err := fs.Parse(args); err != nil {
		return inv, errors.Join(errInvalidArguments, err)
	}
	inv.configPath = *configPath
	inv.configRequired = fs.Changed("config")
	inv.logLevel = *logLevel
	if fs.NArg() != 1 {
		return inv, errInvalidArguments
	}
	inv.basePath = fs.Arg(0)
	return inv, nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	inv, argErr := parseArgs(args)

	cfg, cfgErr := config.Load(inv.configPath, inv.configRequired)
	if cfgErr != nil {
		cfg = config.Default()
	}
	level := cfg.LogLevel
	if inv.logLevel != "" {
		level = inv.logLevel
	}
	logger := logging.ConfigureRuntime(cfg.SyslogTag, level).With().Int("gatekeeper_pid", os.Getpid()).Logger()

	if argErr != nil {
		logger.Error().Err(argErr).Strs("args", args).Msg("invalid arguments")
		return int(gateway.ExitOK)
	}
	if cfgErr != nil {
		logger.Error().Err(cfgErr).Msg("config load failed")
		return int(gateway.ExitFailure)
	}
	return serve(logger, cfg, inv.basePath)
}

func serve(logger zerolog.Logger, cfg config.Config, basePath string) int {
	fd, err := gateway.PrepareStdio(0)
	if err != nil {
		logger.Error().Err(err).Msg("stdio setup failed")
		return int(gateway.ExitFailure)
	}
	peer := gateway.PeerAddress(fd)

	transport, err := gateway.OpenTransport(fd)
	if err != nil {
		logger.Error().Err(err).Str("peer", peer).Msg("session transport unavailable")
		return int(gateway.ExitFailure)
	}
	defer transport.Close()

	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGTERM, unix.SIGINT)
	defer stop()

	svc := &gateway.Service{
		BasePath:        basePath,
		Session:         cfg.Session,
		Verifier:        auth.NewCommandVerifier(cfg.VerifierPath, cfg.VerifierArgs),
		Lister:          resolve.GlobLister{},
		Handoff:         handoff.New(logger),
		Metrics:         observability.NewMetrics(),
		MetricsTextfile: cfg.MetricsTextfile,
		Logger:          logger,
	}
	return int(svc.Serve(ctx, transport, fd, peer))
}
