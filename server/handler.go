// File: server/handler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"log/slog"

	"github.com/momentics/pingpong-ws/control"
	"github.com/momentics/pingpong-ws/internal/logging"
	"github.com/momentics/pingpong-ws/protocol"
)

// PingPongHandler answers every "ping" text message with "pong" and logs
// connection events. It is safe for use by many connections at once.
type PingPongHandler struct {
	logger  *slog.Logger
	metrics *control.MetricsRegistry
}

// NewPingPongHandler returns a handler logging to logger and counting in
// metrics. Both may be nil.
func NewPingPongHandler(logger *slog.Logger, metrics *control.MetricsRegistry) *PingPongHandler {
	return &PingPongHandler{logger: logging.OrNop(logger), metrics: metrics}
}

func (h *PingPongHandler) log(c *protocol.WSConnection) *slog.Logger {
	return h.logger.With("conn", c.ID(), "key", c.Label())
}

func (h *PingPongHandler) OnOpen(c *protocol.WSConnection) {
	h.log(c).Info("connection open", "subprotocol", c.Subprotocol())
}

func (h *PingPongHandler) OnMessage(c *protocol.WSConnection, text string) {
	h.metrics.Add(control.MetricMessagesText, 1)
	log := h.log(c)
	log.Info("message received", "text", text)
	if text != protocol.PingText {
		return
	}
	if err := c.SendText(protocol.PongText); err != nil {
		log.Warn("pong send failed", "error", err)
	}
}

func (h *PingPongHandler) OnPing(c *protocol.WSConnection) {
	h.metrics.Add(control.MetricMessagesPing, 1)
	h.log(c).Info("ping received")
}

func (h *PingPongHandler) OnDecodeError(c *protocol.WSConnection, err error) {
	h.metrics.Add(control.MetricDecodeFailures, 1)
	h.log(c).Warn("frame decode failed", "error", err)
}

func (h *PingPongHandler) OnClose(c *protocol.WSConnection, err error) {
	log := h.log(c)
	if err != nil {
		log.Warn("connection closed", "error", err)
		return
	}
	log.Info("connection closed")
}
