package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/zerbitx/mockserver/config"
	"github.com/zerbitx/mockserver/resolver"
	"github.com/zerbitx/mockserver/server"
	"github.com/zerbitx/mockserver/store"
)

type flags struct {
	port       int
	host       string
	mocks      string
	quiet      bool
	headers    string
	configPath string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:           "mockserver",
		Short:         "Serve HTTP responses from a directory of .mock files",
		Example:       "  mockserver -p 8080 -m './mocks'",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd, f)
			if err != nil {
				return err
			}

			return serve(cfg, newLogger(cfg))
		},
	}

	cmd.PersistentFlags().StringVarP(&f.mocks, "mocks", "m", "", "Path to mock files")
	cmd.PersistentFlags().StringVar(&f.headers, "headers", "", "Comma separated request headers to match mock files on")
	cmd.PersistentFlags().StringVarP(&f.configPath, "config", "c", "", "YAML config file")
	cmd.PersistentFlags().BoolVarP(&f.quiet, "quiet", "q", false, "Do not output anything")
	cmd.Flags().IntVarP(&f.port, "port", "p", 0, "Port to listen on")
	cmd.Flags().StringVar(&f.host, "host", "", "Host to listen on")

	cmd.AddCommand(newResolveCmd(f))

	return cmd
}

// load merges environment, config file and the flags given on the command line, in that order
func load(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("port") {
		cfg.Port = f.port
	}
	if changed("host") {
		cfg.Host = f.host
	}
	if changed("mocks") {
		cfg.MocksDir = f.mocks
	}
	if changed("quiet") {
		cfg.Verbose = !f.quiet
	}
	if changed("headers") {
		cfg.WatchedHeaders = config.ParseWatchedHeaders(f.headers, "")
	}

	return cfg, nil
}

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	if cfg.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	if cfg.LogLevel != "" {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.WithError(err).Warn("ignoring LOG_LEVEL")
		} else {
			logger.SetLevel(level)
		}
	}

	return logger
}

func newResolver(cfg *config.Config, logger logrus.FieldLogger) *resolver.Resolver {
	return resolver.New(
		store.New(cfg.MocksDir, store.WithLogger(logger), store.WithRefresh(cfg.WildcardRefresh)),
		resolver.WithLogger(logger),
		resolver.WithWatchedHeaders(cfg.WatchedHeaders),
	)
}

func serve(cfg *config.Config, logger *logrus.Logger) error {
	s := server.New(newResolver(cfg, logger), server.WithLogger(logger), server.WithHost(cfg.Host), server.WithPort(cfg.Port))

	logger.WithFields(logrus.Fields{
		"mocks":   cfg.MocksDir,
		"headers": cfg.WatchedHeaders,
		"verbose": cfg.Verbose,
	}).Info("mockserver serving mocks")

	errc := make(chan error, 1)

	go func() {
		errc <- s.Start()
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errc:
		return err
	case sig := <-signals:
		logger.WithField("signal", sig.String()).Info("shutting down")
		if err := s.Shutdown(); err != nil {
			return fmt.Errorf("failed to shut down: %w", err)
		}
		return <-errc
	}
}
