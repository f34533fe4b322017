// control/hotreload.go
// Author: momentics <momentics@gmail.com>
//
// Reloads the settings file on demand, typically on SIGHUP.

package control

import (
	"context"
	"log/slog"
	"os"

	"github.com/momentics/pingpong-ws/internal/logging"
)

// Reload loads path and stores the result. On error the store is unchanged.
func Reload(cs *ConfigStore, path string) error {
	s, err := LoadSettings(path)
	if err != nil {
		return err
	}
	cs.SetConfig(s)
	return nil
}

// WatchReload calls Reload for every value received on trigger until ctx
// is done or trigger is closed. Failed reloads are logged and skipped.
func WatchReload(ctx context.Context, cs *ConfigStore, path string, trigger <-chan os.Signal, logger *slog.Logger) {
	logger = logging.OrNop(logger)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-trigger:
			if !ok {
				return
			}
			if err := Reload(cs, path); err != nil {
				logger.Warn("settings reload failed", "path", path, "error", err)
				continue
			}
			logger.Info("settings reloaded", "path", path)
		}
	}
}
