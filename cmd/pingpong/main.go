// pingpong - WebSocket ping-pong server and reference client
package main

import (
	"os"

	"github.com/momentics/pingpong-ws/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
