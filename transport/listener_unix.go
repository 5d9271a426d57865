//go:build unix

package transport

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// control sets SO_REUSEADDR on the raw listening socket
func control(network, address string, c syscall.RawConn) error {
	var opErr error
	err := c.Control(func(fd uintptr) {
		opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return opErr
}
