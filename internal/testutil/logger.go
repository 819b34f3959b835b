package testutil

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// NewObservedLogger returns a sugared logger whose records can be inspected.
func NewObservedLogger() (*zap.SugaredLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core).Sugar(), logs
}

// CountLevel returns how many records were logged at level.
func CountLevel(logs *observer.ObservedLogs, level zapcore.Level) int {
	n := 0
	for _, entry := range logs.All() {
		if entry.Level == level {
			n++
		}
	}
	return n
}
