//go:build linux

package gateway

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

func controlListener(c syscall.RawConn, cfg Config) error {
	if !cfg.ReusePort {
		return nil
	}
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	if sockErr != nil {
		return fmt.Errorf("failed to set SO_REUSEPORT: %w", sockErr)
	}
	return nil
}
