// Package cli implements the pingpong command tree.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/momentics/pingpong-ws/control"
	"github.com/momentics/pingpong-ws/internal/logging"
)

// Build-time variables set via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

// NewRootCmd builds the pingpong command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "pingpong",
		Short:         "WebSocket ping-pong server and client",
		Version:       fmt.Sprintf("%s (%s)", Version, Commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Path to a YAML settings file")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&opts.logFormat, "log-format", "", "Log format: text or json")

	root.AddCommand(newServeCmd(opts), newPingCmd(opts))
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "error:", err)
		return 1
	}
	return 0
}

// settings loads the settings file and environment, then applies the
// persistent flags that were set.
func (o *rootOptions) settings(cmd *cobra.Command) (control.Settings, error) {
	s, err := control.LoadSettings(o.configPath)
	if err != nil {
		return control.Settings{}, err
	}
	if cmd.Flags().Changed("log-level") {
		s.Log.Level = o.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		s.Log.Format = o.logFormat
	}
	return s, nil
}

// newLogger builds the command logger. The returned LevelVar changes the
// level of the running logger.
func newLogger(s control.LogSettings, out io.Writer) (*slog.Logger, *slog.LevelVar) {
	lv := new(slog.LevelVar)
	lv.Set(logging.ParseLevel(s.Level))
	if out == nil {
		out = os.Stderr
	}
	return logging.New(logging.Config{
		Format:  logging.ParseFormat(s.Format),
		Output:  out,
		Leveler: lv,
	}), lv
}
