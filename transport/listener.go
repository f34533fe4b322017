// File: transport/listener.go
// Author: momentics <momentics@gmail.com>
//
// TCP listener construction with platform socket options.

package transport

import (
	"context"
	"fmt"
	"net"
)

// Listen opens a TCP listener on addr with SO_REUSEADDR set where the
// platform supports it, so a restarted server can rebind immediately.
func Listen(ctx context.Context, addr string) (net.Listener, error) {
	lc := net.ListenConfig{Control: controlListener}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return ln, nil
}
