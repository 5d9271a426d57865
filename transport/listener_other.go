//go:build !unix

package transport

import "syscall"

func control(network, address string, c syscall.RawConn) error {
	return nil
}
