// Package logging provides structured logging configuration for pingpong-ws.
//
// It wraps log/slog so that the server, the client and the CLI share one
// level and format setting. Components accept a *slog.Logger through an
// option; when none is given they use Nop().
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelDebug,
//	    Format: logging.FormatText,
//	})
//	logger.Info("server started", "addr", ":3300")
package logging
