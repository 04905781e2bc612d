/*
 * Copyright (c) 2026, QuorumFS Authors. All rights reserved.
 */
package rpc

import (
	"context"
	"net"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"

	"github.com/quorumfs/quorumfs/internal/cluster"
	"github.com/quorumfs/quorumfs/internal/inventory"
	"github.com/quorumfs/quorumfs/internal/metrics"
	"github.com/quorumfs/quorumfs/internal/qerrors"
	"github.com/quorumfs/quorumfs/internal/qlog"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Handler is the full set of RPC operations a replica answers,
// implemented by internal/replica.Replica. Defined here, not imported
// from internal/replica, so the transport has no dependency on the
// replica-level orchestration logic.
type Handler interface {
	ListFiles(ctx context.Context) ([]CompleteInfo, error)
	GetAllFiles(ctx context.Context) ([]inventory.FileInfo, error)
	ReadFile(ctx context.Context, name string) (string, error)
	WriteFile(ctx context.Context, name, externalPath string) error
	CordListFiles(ctx context.Context) ([]CompleteInfo, error)
	InsertJob(ctx context.Context, req Request) (Response, error)
	GetVersion(ctx context.Context, name string) (int, error)
	GetFileSize(ctx context.Context, name string) (int64, error)
	RequestData(ctx context.Context, name string, offset, size int64) ([]byte, error)
	CopyFile(ctx context.Context, version int, name string, src cluster.ContactInfo) error
	FinishRead(ctx context.Context, ticket int64) error
	FinishWrite(ctx context.Context, ticket int64, version int, name string, src, origin cluster.ContactInfo) error
}

// Server answers the RPC surface over fasthttp, one goroutine per
// inbound request, so concurrent calls from many peers are handled in
// parallel.
type Server struct {
	h   Handler
	mtr *metrics.Metrics
}

// NewServer wraps h. mtr may be nil; per-operation RPC counters are
// then skipped.
func NewServer(h Handler, mtr *metrics.Metrics) *Server { return &Server{h: h, mtr: mtr} }

func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	qlog.Infof("rpc: listening on %s", addr)
	return s.Serve(ln)
}

// Serve runs the server over an already-bound listener. ListenAndServe
// binds addr itself and delegates here; tests (and the integration
// harness) use Serve directly over an in-memory listener, the same
// pattern rpc_test.go uses for single-node tests.
func (s *Server) Serve(ln net.Listener) error {
	srv := &fasthttp.Server{
		Handler: s.route,
		Name:    "quorumfs-replica",
	}
	return srv.Serve(ln)
}

func (s *Server) route(ctx *fasthttp.RequestCtx) {
	corrID := qlog.CorrID()
	path := string(ctx.Path())
	qlog.Debugf("rpc[%s]: %s %s", corrID, ctx.Method(), path)

	cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	switch path {
	case "/list_files":
		err = s.handleListFiles(cctx, ctx)
	case "/get_all_files":
		err = s.handleGetAllFiles(cctx, ctx)
	case "/read_file":
		err = s.handleReadFile(cctx, ctx)
	case "/write_file":
		err = s.handleWriteFile(cctx, ctx)
	case "/cord_list_files":
		err = s.handleCordListFiles(cctx, ctx)
	case "/insert_job":
		err = s.handleInsertJob(cctx, ctx)
	case "/get_version":
		err = s.handleGetVersion(cctx, ctx)
	case "/get_file_size":
		err = s.handleGetFileSize(cctx, ctx)
	case "/request_data":
		err = s.handleRequestData(cctx, ctx)
	case "/copy_file":
		err = s.handleCopyFile(cctx, ctx)
	case "/finish_read":
		err = s.handleFinishRead(cctx, ctx)
	case "/finish_write":
		err = s.handleFinishWrite(cctx, ctx)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		return
	}
	if err != nil {
		s.mtr.IncRPC(path, "error")
		writeErr(ctx, err)
		return
	}
	s.mtr.IncRPC(path, "ok")
}

func writeErr(ctx *fasthttp.RequestCtx, err error) {
	switch err.(type) {
	case *qerrors.ProtocolError:
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
	case *qerrors.NotFound:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	case *qerrors.Timeout:
		ctx.SetStatusCode(fasthttp.StatusGatewayTimeout)
	default:
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
	}
	ctx.SetBodyString(err.Error())
}

func (s *Server) handleListFiles(cctx context.Context, ctx *fasthttp.RequestCtx) error {
	all, err := s.h.ListFiles(cctx)
	if err != nil {
		return err
	}
	return writeJSON(ctx, all)
}

func (s *Server) handleGetAllFiles(cctx context.Context, ctx *fasthttp.RequestCtx) error {
	files, err := s.h.GetAllFiles(cctx)
	if err != nil {
		return err
	}
	env := fileInfoList{Files: files}
	body, err := env.MarshalMsg(nil)
	if err != nil {
		return err
	}
	ctx.SetBody(body)
	return nil
}

type readReq struct {
	Name string `json:"name"`
}

func (s *Server) handleReadFile(cctx context.Context, ctx *fasthttp.RequestCtx) error {
	var req readReq
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		return qerrors.NewProtocolError("decoding read_file request", err)
	}
	path, err := s.h.ReadFile(cctx, req.Name)
	if err != nil {
		return err
	}
	return writeJSON(ctx, map[string]string{"path": path})
}

type writeReq struct {
	Name         string `json:"name"`
	ExternalPath string `json:"external_path"`
}

func (s *Server) handleWriteFile(cctx context.Context, ctx *fasthttp.RequestCtx) error {
	var req writeReq
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		return qerrors.NewProtocolError("decoding write_file request", err)
	}
	if err := s.h.WriteFile(cctx, req.Name, req.ExternalPath); err != nil {
		return err
	}
	ctx.SetStatusCode(fasthttp.StatusOK)
	return nil
}

func (s *Server) handleCordListFiles(cctx context.Context, ctx *fasthttp.RequestCtx) error {
	all, err := s.h.CordListFiles(cctx)
	if err != nil {
		return err
	}
	return writeJSON(ctx, all)
}

func (s *Server) handleInsertJob(cctx context.Context, ctx *fasthttp.RequestCtx) error {
	var req Request
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		return qerrors.NewProtocolError("decoding insert_job request", err)
	}
	resp, err := s.h.InsertJob(cctx, req)
	if err != nil {
		return err
	}
	return writeJSON(ctx, resp)
}

type nameReq struct {
	Name string `json:"name"`
}

func (s *Server) handleGetVersion(cctx context.Context, ctx *fasthttp.RequestCtx) error {
	var req nameReq
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		return qerrors.NewProtocolError("decoding get_version request", err)
	}
	v, err := s.h.GetVersion(cctx, req.Name)
	if err != nil {
		return err
	}
	return writeJSON(ctx, map[string]int{"version": v})
}

func (s *Server) handleGetFileSize(cctx context.Context, ctx *fasthttp.RequestCtx) error {
	var req nameReq
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		return qerrors.NewProtocolError("decoding get_file_size request", err)
	}
	sz, err := s.h.GetFileSize(cctx, req.Name)
	if err != nil {
		return err
	}
	return writeJSON(ctx, map[string]int64{"size": sz})
}

type requestDataReq struct {
	Name   string `json:"name"`
	Offset int64  `json:"offset"`
	Size   int64  `json:"size"`
}

func (s *Server) handleRequestData(cctx context.Context, ctx *fasthttp.RequestCtx) error {
	var req requestDataReq
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		return qerrors.NewProtocolError("decoding request_data request", err)
	}
	data, err := s.h.RequestData(cctx, req.Name, req.Offset, req.Size)
	if err != nil {
		return err
	}
	env := chunkResponse{Data: data}
	body, err := env.MarshalMsg(nil)
	if err != nil {
		return err
	}
	ctx.SetBody(body)
	return nil
}

type copyFileReq struct {
	Version int    `json:"version"`
	Name    string `json:"name"`
	IP      string `json:"ip"`
	Port    int    `json:"port"`
}

func (s *Server) handleCopyFile(cctx context.Context, ctx *fasthttp.RequestCtx) error {
	var req copyFileReq
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		return qerrors.NewProtocolError("decoding copy_file request", err)
	}
	src := cluster.ContactInfo{IP: req.IP, Port: req.Port}
	if err := s.h.CopyFile(cctx, req.Version, req.Name, src); err != nil {
		return err
	}
	ctx.SetStatusCode(fasthttp.StatusOK)
	return nil
}

type finishReadReq struct {
	Ticket int64 `json:"ticket"`
}

func (s *Server) handleFinishRead(cctx context.Context, ctx *fasthttp.RequestCtx) error {
	var req finishReadReq
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		return qerrors.NewProtocolError("decoding finish_read request", err)
	}
	if err := s.h.FinishRead(cctx, req.Ticket); err != nil {
		return err
	}
	ctx.SetStatusCode(fasthttp.StatusOK)
	return nil
}

type finishWriteReq struct {
	Ticket     int64  `json:"ticket"`
	Version    int    `json:"version"`
	Name       string `json:"name"`
	SrcIP      string `json:"src_ip"`
	SrcPort    int    `json:"src_port"`
	OriginIP   string `json:"origin_ip"`
	OriginPort int    `json:"origin_port"`
}

func (s *Server) handleFinishWrite(cctx context.Context, ctx *fasthttp.RequestCtx) error {
	var req finishWriteReq
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		return qerrors.NewProtocolError("decoding finish_write request", err)
	}
	src := cluster.ContactInfo{IP: req.SrcIP, Port: req.SrcPort}
	origin := cluster.ContactInfo{IP: req.OriginIP, Port: req.OriginPort}
	if err := s.h.FinishWrite(cctx, req.Ticket, req.Version, req.Name, src, origin); err != nil {
		return err
	}
	ctx.SetStatusCode(fasthttp.StatusOK)
	return nil
}

func writeJSON(ctx *fasthttp.RequestCtx, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
	return nil
}
