// Package rpc is the inter-replica RPC surface: a request/response
// transport built on valyala/fasthttp, with json-iterator envelopes
// for most calls and a hand-written tinylib/msgp binary encoding for
// the two hottest payloads, chunk reads and inventory snapshots,
// where a tighter wire format avoids a JSON-escaping pass over raw
// bytes.
/*
 * Copyright (c) 2026, QuorumFS Authors. All rights reserved.
 */
package rpc

import (
	"github.com/tinylib/msgp/msgp"

	"github.com/quorumfs/quorumfs/internal/cluster"
	"github.com/quorumfs/quorumfs/internal/inventory"
)

// Request names one operation submitted to the coordinator's queue.
type Request struct {
	Type     string `json:"type"` // "read" | "write"
	Filename string `json:"filename"`
}

// Request.Type values.
const (
	TypeRead  = "read"
	TypeWrite = "write"
)

// Response carries the version believed freshest among the polled
// quorum, and the peer holding it. Contact is nil iff Version == 0.
// Ticket identifies the coordinator task this response belongs to; the
// initiator must echo it back on the matching finish_read/finish_write
// so the coordinator can tell a live finish from a stale one.
type Response struct {
	Ticket  int64                `json:"ticket"`
	Version int                  `json:"version"`
	Contact *cluster.ContactInfo `json:"contact,omitempty"`
}

// CompleteInfo is one replica's identity plus its full inventory
// snapshot, used only by list_files.
type CompleteInfo struct {
	Contact cluster.ContactInfo  `json:"contact"`
	Files   []inventory.FileInfo `json:"files"`
}

// chunkResponse is the wire envelope for request_data: the raw bytes
// of one chunk. Hand-marshaled with msgp's array-tuple encoding (no
// field names on the wire) since this is the highest-volume call in
// the whole RPC surface -- every chunk of every pulled file goes
// through it.
type chunkResponse struct {
	Data []byte
}

// MarshalMsg implements msgp.Marshaler by hand, using the same
// runtime append helpers msgp's own code generator emits into
// *_gen.go files (this module runs no code-generation step, so the
// method is written directly instead of generated).
func (c *chunkResponse) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.AppendArrayHeader(b, 1)
	o = msgp.AppendBytes(o, c.Data)
	return o, nil
}

func (c *chunkResponse) UnmarshalMsg(bts []byte) ([]byte, error) {
	sz, bts, err := msgp.ReadArrayHeaderBytes(bts)
	if err != nil {
		return nil, err
	}
	if sz != 1 {
		return nil, msgp.ArrayError{Wanted: 1, Got: sz}
	}
	c.Data, bts, err = msgp.ReadBytesBytes(bts, c.Data[:0])
	if err != nil {
		return nil, err
	}
	return bts, nil
}

// fileInfoList is the wire envelope for get_all_files: a tuple-encoded
// list of (name, version) pairs.
type fileInfoList struct {
	Files []inventory.FileInfo
}

func (l *fileInfoList) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.AppendArrayHeader(b, uint32(len(l.Files)))
	for _, f := range l.Files {
		o = msgp.AppendArrayHeader(o, 2)
		o = msgp.AppendString(o, f.Name)
		o = msgp.AppendInt(o, f.Version)
	}
	return o, nil
}

func (l *fileInfoList) UnmarshalMsg(bts []byte) ([]byte, error) {
	n, bts, err := msgp.ReadArrayHeaderBytes(bts)
	if err != nil {
		return nil, err
	}
	l.Files = make([]inventory.FileInfo, 0, n)
	for i := uint32(0); i < n; i++ {
		sz, rest, err := msgp.ReadArrayHeaderBytes(bts)
		if err != nil {
			return nil, err
		}
		if sz != 2 {
			return nil, msgp.ArrayError{Wanted: 2, Got: sz}
		}
		bts = rest
		var fi inventory.FileInfo
		fi.Name, bts, err = msgp.ReadStringBytes(bts)
		if err != nil {
			return nil, err
		}
		fi.Version, bts, err = msgp.ReadIntBytes(bts)
		if err != nil {
			return nil, err
		}
		l.Files = append(l.Files, fi)
	}
	return bts, nil
}
