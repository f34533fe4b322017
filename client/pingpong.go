package client

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/momentics/pingpong-ws/protocol"
)

// ErrConnectionClosed is returned by RunPingPong when the connection closes
// before every pong has arrived.
var ErrConnectionClosed = errors.New("connection closed before the exchange completed")

// RunPingPong sends "ping" count times, interval apart, and counts "pong"
// replies on c.Messages. When all pongs have arrived it closes the
// connection and waits for CLOSED. It returns the number of pongs seen.
func RunPingPong(ctx context.Context, c *Client, count int, interval time.Duration) (int, error) {
	pongs := 0
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for i := 0; i < count; i++ {
			if i > 0 && interval > 0 {
				t := time.NewTimer(interval)
				select {
				case <-t.C:
				case <-gctx.Done():
					t.Stop()
					return gctx.Err()
				}
			}
			if err := c.Send(protocol.PingText); err != nil {
				return err
			}
			c.logger.Info("sent", "text", protocol.PingText, "seq", i+1)
		}
		return nil
	})

	g.Go(func() error {
		for pongs < count {
			select {
			case msg, ok := <-c.Messages():
				if !ok {
					return ErrConnectionClosed
				}
				if msg == protocol.PongText {
					pongs++
					c.logger.Info("received", "text", msg, "seq", pongs)
				}
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	err := g.Wait()
	_ = c.Close()
	if werr := c.Wait(ctx); werr != nil {
		c.Release()
		if err == nil {
			err = werr
		}
	}
	return pongs, err
}
