package cli

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/momentics/pingpong-ws/client"
	"github.com/momentics/pingpong-ws/control"
)

func newPingCmd(root *rootOptions) *cobra.Command {
	var (
		url         string
		count       int
		interval    time.Duration
		subprotocol string
	)
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Connect to a server, exchange pings for pongs and close",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := root.settings(cmd)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("url") {
				s.Client.URL = url
			}
			if flags.Changed("count") {
				s.Client.Count = count
			}
			if flags.Changed("interval") {
				s.Client.Interval = interval
			}
			if flags.Changed("subprotocol") {
				s.Client.Subprotocol = subprotocol
			}
			if err := s.Validate(); err != nil {
				return err
			}

			logger, _ := newLogger(s.Log, cmd.ErrOrStderr())
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			cfg := client.DefaultConfig()
			cfg.URL = s.Client.URL
			cfg.Subprotocol = s.Client.Subprotocol
			cfg.HandshakeTimeout = s.Client.HandshakeTimeout
			metrics := control.NewMetricsRegistry()
			c, err := client.Dial(ctx, cfg, nil, client.WithLogger(logger), client.WithMetrics(metrics))
			if err != nil {
				return err
			}

			pongs, err := client.RunPingPong(ctx, c, s.Client.Count, s.Client.Interval)
			fmt.Fprintf(cmd.OutOrStdout(), "received %d/%d pongs from %s\n", pongs, s.Client.Count, s.Client.URL)
			if err != nil {
				return err
			}
			logger.Info("exchange complete", "state", c.State().String(), "metrics", metrics.GetSnapshot())
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&url, "url", control.DefaultClientURL, "Server URL (ws:// or wss://)")
	f.IntVar(&count, "count", 5, "Number of pings to send")
	f.DurationVar(&interval, "interval", time.Second, "Delay between pings")
	f.StringVar(&subprotocol, "subprotocol", "", "Requested sub-protocol (default ping-pong)")
	return cmd
}
