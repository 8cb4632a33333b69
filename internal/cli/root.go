package cli

import (
	"context"
	"log/slog"
	"os"

	"detbench/internal/config"
	"detbench/internal/logging"
	"detbench/internal/metrics"
	"detbench/internal/ui"
	"detbench/processing/backend"
	"detbench/processing/relay"
	"detbench/processing/task"

	"github.com/spf13/cobra"
)

var (
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "detbench",
		Short: "Evaluate and benchmark object detection models",
		Long: `Pick a trained detection model and a dataset, then run an accuracy
validation or a throughput benchmark against them. Without a subcommand the
desktop window is opened.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			ui.CreateApp(s.cfg, s.deps, s.logger).Run()
			return nil
		},
	}
)

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./"+config.DefaultConfigPath+")")
}

// session holds what a GUI or headless run shares.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	deps     task.Deps
	shutdown logging.ShutdownFunc
	cancel   context.CancelFunc
}

func newSession(parent context.Context) (*session, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	logger, shutdown, err := logging.NewLogger(cfg.Logging.Level)
	if err != nil {
		logger = logging.FallbackLogger()
		shutdown = func() error { return nil }
		logger.Warn("falling back to default logger", "error", err)
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	if cfg.Metrics.Addr != "" {
		metrics.Serve(ctx, cfg.Metrics.Addr, logger)
	}

	// everything the model prints goes through this channel so that a
	// validation run can divert it into the log view
	console := relay.NewChannel(os.Stdout)

	return &session{
		cfg:    cfg,
		logger: logger,
		deps: task.Deps{
			Loader:  backend.NewRemoteLoader(cfg.Backend.URL, cfg.Backend.DialTimeout, cfg.Backend.RequestTimeout, logger),
			Relay:   relay.New(console),
			Output:  console,
			Dataset: cfg.Dataset,
			Logger:  logger,
		},
		shutdown: shutdown,
		cancel:   cancel,
	}, nil
}

func (s *session) close() {
	s.cancel()
	_ = s.shutdown()
}
