//go:build !linux

package gateway

import (
	"syscall"

	"uniqnum/internal/shared/logger"
)

func controlListener(_ syscall.RawConn, cfg Config) error {
	if cfg.ReusePort {
		logger.Warn().Msg("reuse_port is only supported on linux, ignoring")
	}
	return nil
}
