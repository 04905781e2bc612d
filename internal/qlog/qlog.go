// Package qlog is a minimal leveled logger: package-level
// Infof/Warnf/Errorf/Debugf with timestamps, on top of the standard
// log package.
/*
 * Copyright (c) 2026, QuorumFS Authors. All rights reserved.
 */
package qlog

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"

	"github.com/teris-io/shortid"
)

var (
	std   = log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)
	debug int32
)

// SetDebug toggles Debugf output process-wide.
func SetDebug(on bool) {
	if on {
		atomic.StoreInt32(&debug, 1)
	} else {
		atomic.StoreInt32(&debug, 0)
	}
}

func Infof(format string, args ...any)  { std.Output(2, "I "+fmt.Sprintf(format, args...)) }
func Warnf(format string, args ...any)  { std.Output(2, "W "+fmt.Sprintf(format, args...)) }
func Errorf(format string, args ...any) { std.Output(2, "E "+fmt.Sprintf(format, args...)) }

func Debugf(format string, args ...any) {
	if atomic.LoadInt32(&debug) == 0 {
		return
	}
	std.Output(2, "D "+fmt.Sprintf(format, args...))
}

// CorrID returns a short correlation id to attach to one RPC call's
// log lines. internal/rpc's route puts it on the per-call debug line;
// the coordinator's admit/run/finish lines carry the ticket number
// instead.
func CorrID() string {
	id, err := shortid.Generate()
	if err != nil {
		return "----"
	}
	return id
}
