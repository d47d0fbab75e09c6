/*
NAME
  log.go

DESCRIPTION
  log.go builds the zap logger used by c64streamd, writing to both
  stderr and a rotated log file via lumberjack.

LICENSE
  Copyright (C) 2026 the c64stream authors. All Rights Reserved.
*/

package main

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logPath      = "/var/log/c64streamd/c64streamd.log"
	logMaxSizeMB = 100
	logMaxBackup = 5
	logMaxAgeDay = 28
)

// newLogger returns a zap.Logger writing JSON to a rotated log file and
// human-readable console output to stderr.
func newLogger(debug bool) *zap.Logger {
	fileSink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    logMaxSizeMB,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAgeDay,
	})

	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}

	jsonEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	consoleEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())

	core := zapcore.NewTee(
		zapcore.NewCore(jsonEncoder, fileSink, level),
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stderr), level),
	)

	return zap.New(core, zap.AddCaller())
}
