//go:build !linux

/*
NAME
  priority_other.go

DESCRIPTION
  priority_other.go is the non-Linux stub for elevatePriority: niceness
  has no portable equivalent, so this is a no-op.

LICENSE
  Copyright (C) 2026 the c64stream authors. All Rights Reserved.
*/

package main

import "go.uber.org/zap"

func elevatePriority(logger *zap.Logger) {
	logger.Debug("receiver thread priority elevation is not supported on this platform")
}
