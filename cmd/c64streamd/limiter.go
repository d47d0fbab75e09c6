/*
NAME
  limiter.go

DESCRIPTION
  limiter.go rate-limits the daemon's repeated warnings (HTTP server
  failure, config reload failures) so they can't flood the log.

LICENSE
  Copyright (C) 2026 the c64stream authors. All Rights Reserved.
*/

package main

import (
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// warnLimiter wraps a zap.Logger so that repeated calls to Warn are
// throttled rather than suppressed outright. One token bucket is shared by
// every message: up to burst warnings log at once, then at most perSecond
// per second; calls over the limit are dropped.
type warnLimiter struct {
	logger  *zap.Logger
	limiter *rate.Limiter
}

func newWarnLimiter(logger *zap.Logger, perSecond float64, burst int) *warnLimiter {
	return &warnLimiter{logger: logger, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (w *warnLimiter) Warn(msg string, fields ...zap.Field) {
	if !w.limiter.Allow() {
		return
	}
	w.logger.Warn(msg, fields...)
}
