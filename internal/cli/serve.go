package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/momentics/pingpong-ws/control"
	"github.com/momentics/pingpong-ws/internal/logging"
	"github.com/momentics/pingpong-ws/server"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		port        int
		subprotocol string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ping-pong WebSocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := root.settings(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				s.Server.Port = port
			}
			if cmd.Flags().Changed("subprotocol") {
				s.Server.Subprotocol = subprotocol
			}
			if err := s.Validate(); err != nil {
				return err
			}

			logger, level := newLogger(s.Log, cmd.ErrOrStderr())
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store := control.NewConfigStore(s)
			store.OnReload(func(next control.Settings) {
				level.Set(logging.ParseLevel(next.Log.Level))
			})
			if root.configPath != "" {
				hup := make(chan os.Signal, 1)
				signal.Notify(hup, syscall.SIGHUP)
				defer signal.Stop(hup)
				go control.WatchReload(ctx, store, root.configPath, hup, logger)
			}

			metrics := control.NewMetricsRegistry()
			cfg := server.DefaultConfig()
			cfg.ListenAddr = s.Server.ListenAddr()
			cfg.Subprotocol = s.Server.Subprotocol
			cfg.HandshakeTimeout = s.Server.HandshakeTimeout
			srv := server.NewServer(cfg, server.NewPingPongHandler(logger, metrics),
				server.WithLogger(logger), server.WithMetrics(metrics))

			err = srv.ListenAndServe(ctx)
			logger.Info("server stopped", "metrics", metrics.GetSnapshot())
			if errors.Is(err, context.Canceled) || errors.Is(err, server.ErrServerClosed) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().IntVar(&port, "port", control.DefaultPort, "TCP port to listen on")
	cmd.Flags().StringVar(&subprotocol, "subprotocol", "", "Supported sub-protocol (default ping-pong)")
	return cmd
}
