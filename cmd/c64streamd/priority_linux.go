//go:build linux

/*
NAME
  priority_linux.go

DESCRIPTION
  priority_linux.go raises the calling OS thread's scheduling priority on
  Linux so the packet receive loops are less likely to be starved under
  load, mirroring the platform-specific init files the teacher repo uses
  for Raspberry Pi variants.

LICENSE
  Copyright (C) 2026 the c64stream authors. All Rights Reserved.
*/

package main

import (
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// receiverNice is the target niceness for the receive goroutines; more
// negative is higher priority. -10 is a modest boost that doesn't
// require elevated privileges to attempt (it may silently fail without
// CAP_SYS_NICE, which is fine: best effort only).
const receiverNice = -10

// elevatePriority best-effort raises this OS thread's niceness. Errors
// are logged at debug level and otherwise ignored: running without the
// capability to renice is a normal, supported configuration.
func elevatePriority(logger *zap.Logger) {
	if err := unix.Setpriority(unix.PRIO_PROCESS, 0, receiverNice); err != nil {
		logger.Debug("could not raise receiver thread priority", zap.Error(err))
	}
}
