//go:build !unix

// File: transport/sockopt_other.go
// Author: momentics <momentics@gmail.com>

package transport

import "syscall"

func controlListener(network, address string, c syscall.RawConn) error {
	return nil
}
