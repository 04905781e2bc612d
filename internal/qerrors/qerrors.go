// Package qerrors defines the error taxonomy shared by every quorumfs
// component: config-time failures, per-call protocol failures, and the
// per-task failures the coordinator and replication paths surface to
// callers.
/*
 * Copyright (c) 2026, QuorumFS Authors. All rights reserved.
 */
package qerrors

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

// ConfigError wraps a fatal failure loading the cluster descriptor.
type ConfigError struct {
	cause error
	msg   string
}

func NewConfigError(msg string, cause error) *ConfigError {
	return &ConfigError{msg: msg, cause: errors.WithStack(cause)}
}

func (e *ConfigError) Error() string {
	if e.cause == nil {
		return "config: " + e.msg
	}
	return fmt.Sprintf("config: %s: %v", e.msg, e.cause)
}

func (e *ConfigError) Unwrap() error { return e.cause }

// ProtocolError marks a malformed RPC request or response; the
// connection carrying it is closed without affecting the server.
type ProtocolError struct {
	cause error
	msg   string
}

func NewProtocolError(msg string, cause error) *ProtocolError {
	return &ProtocolError{msg: msg, cause: errors.WithStack(cause)}
}

func (e *ProtocolError) Error() string {
	if e.cause == nil {
		return "protocol: " + e.msg
	}
	return fmt.Sprintf("protocol: %s: %v", e.msg, e.cause)
}

func (e *ProtocolError) Unwrap() error { return e.cause }

// TransferError marks a failed chunked pull (CopyFile). The local
// partially-written file is discarded; the inventory is left
// untouched.
type TransferError struct {
	cause error
	name  string
}

func NewTransferError(name string, cause error) *TransferError {
	return &TransferError{name: name, cause: errors.WithStack(cause)}
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer %s: %v", e.name, e.cause)
}

func (e *TransferError) Unwrap() error { return e.cause }

// QuorumError marks a failed quorum task (probe timeout, watchdog
// force-release, or similar). No partial completion is reported.
type QuorumError struct {
	cause  error
	ticket int64
	msg    string
}

func NewQuorumError(ticket int64, msg string, cause error) *QuorumError {
	return &QuorumError{ticket: ticket, msg: msg, cause: errors.WithStack(cause)}
}

func (e *QuorumError) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("quorum: ticket %d: %s", e.ticket, e.msg)
	}
	return fmt.Sprintf("quorum: ticket %d: %s: %v", e.ticket, e.msg, e.cause)
}

func (e *QuorumError) Unwrap() error { return e.cause }

// NotFound marks a missing local file.
type NotFound struct {
	Name string
}

func (e *NotFound) Error() string { return fmt.Sprintf("not found: %s", e.Name) }

// Timeout marks an RPC that exceeded its deadline.
type Timeout struct {
	Op string
}

func (e *Timeout) Error() string { return fmt.Sprintf("timeout: %s", e.Op) }

// Cause unwraps to the deepest non-nil cause, for log lines that want
// the root error.
func Cause(err error) error {
	for {
		next := stderrors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
