/*
 * Copyright (c) 2026, QuorumFS Authors. All rights reserved.
 */
package rpc

import (
	"context"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/quorumfs/quorumfs/internal/cluster"
	"github.com/quorumfs/quorumfs/internal/inventory"
	"github.com/quorumfs/quorumfs/internal/qerrors"
)

// Client calls every operation in the RPC surface against a named
// peer. It satisfies internal/transfer.PeerClient (GetFileSize,
// RequestData) as well as the broader set internal/coordinator and
// internal/replica need for quorum probing and propagation.
type Client struct {
	hc      *fasthttp.Client
	timeout time.Duration
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		hc: &fasthttp.Client{
			Name:                "quorumfs-client",
			MaxConnsPerHost:     64,
			MaxIdleConnDuration: 30 * time.Second,
		},
		timeout: timeout,
	}
}

// NewClientWithDialer is NewClient with a custom dial function, used by
// tests to talk to an in-memory fasthttputil listener instead of a real
// socket.
func NewClientWithDialer(timeout time.Duration, dial fasthttp.DialFunc) *Client {
	return &Client{
		hc: &fasthttp.Client{
			Name:                "quorumfs-client",
			MaxConnsPerHost:     64,
			MaxIdleConnDuration: 30 * time.Second,
			Dial:                dial,
		},
		timeout: timeout,
	}
}

func (c *Client) do(ctx context.Context, peer cluster.ContactInfo, path string, body []byte) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(fmt.Sprintf("http://%s%s", peer.String(), path))
	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetBody(body)

	deadline := c.timeout
	if dl, ok := ctx.Deadline(); ok {
		if until := time.Until(dl); until < deadline || deadline == 0 {
			deadline = until
		}
	}
	if deadline <= 0 {
		deadline = c.timeout
	}

	if err := c.hc.DoTimeout(req, resp, deadline); err != nil {
		return nil, &qerrors.Timeout{Op: path}
	}
	if resp.StatusCode() >= 400 {
		return nil, qerrors.NewProtocolError(fmt.Sprintf("%s returned %d", path, resp.StatusCode()),
			fmt.Errorf("%s", string(resp.Body())))
	}
	out := make([]byte, len(resp.Body()))
	copy(out, resp.Body())
	return out, nil
}

func (c *Client) ListFiles(ctx context.Context, peer cluster.ContactInfo) ([]CompleteInfo, error) {
	body, err := c.do(ctx, peer, "/list_files", nil)
	if err != nil {
		return nil, err
	}
	var out []CompleteInfo
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, qerrors.NewProtocolError("decoding list_files response", err)
	}
	return out, nil
}

func (c *Client) GetAllFiles(ctx context.Context, peer cluster.ContactInfo) ([]inventory.FileInfo, error) {
	body, err := c.do(ctx, peer, "/get_all_files", nil)
	if err != nil {
		return nil, err
	}
	var env fileInfoList
	if _, err := env.UnmarshalMsg(body); err != nil {
		return nil, qerrors.NewProtocolError("decoding get_all_files response", err)
	}
	return env.Files, nil
}

func (c *Client) ReadFile(ctx context.Context, peer cluster.ContactInfo, name string) (string, error) {
	payload, _ := json.Marshal(readReq{Name: name})
	body, err := c.do(ctx, peer, "/read_file", payload)
	if err != nil {
		return "", err
	}
	var out struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", qerrors.NewProtocolError("decoding read_file response", err)
	}
	return out.Path, nil
}

func (c *Client) WriteFile(ctx context.Context, peer cluster.ContactInfo, name, externalPath string) error {
	payload, _ := json.Marshal(writeReq{Name: name, ExternalPath: externalPath})
	_, err := c.do(ctx, peer, "/write_file", payload)
	return err
}

func (c *Client) CordListFiles(ctx context.Context, peer cluster.ContactInfo) ([]CompleteInfo, error) {
	body, err := c.do(ctx, peer, "/cord_list_files", nil)
	if err != nil {
		return nil, err
	}
	var out []CompleteInfo
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, qerrors.NewProtocolError("decoding cord_list_files response", err)
	}
	return out, nil
}

func (c *Client) InsertJob(ctx context.Context, peer cluster.ContactInfo, req Request) (Response, error) {
	payload, _ := json.Marshal(req)
	body, err := c.do(ctx, peer, "/insert_job", payload)
	if err != nil {
		return Response{}, err
	}
	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return Response{}, qerrors.NewProtocolError("decoding insert_job response", err)
	}
	return out, nil
}

func (c *Client) GetVersion(ctx context.Context, peer cluster.ContactInfo, name string) (int, error) {
	payload, _ := json.Marshal(nameReq{Name: name})
	body, err := c.do(ctx, peer, "/get_version", payload)
	if err != nil {
		return 0, err
	}
	var out struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, qerrors.NewProtocolError("decoding get_version response", err)
	}
	return out.Version, nil
}

func (c *Client) GetFileSize(ctx context.Context, peer cluster.ContactInfo, name string) (int64, error) {
	payload, _ := json.Marshal(nameReq{Name: name})
	body, err := c.do(ctx, peer, "/get_file_size", payload)
	if err != nil {
		return 0, err
	}
	var out struct {
		Size int64 `json:"size"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, qerrors.NewProtocolError("decoding get_file_size response", err)
	}
	return out.Size, nil
}

func (c *Client) RequestData(ctx context.Context, peer cluster.ContactInfo, name string, offset, size int64) ([]byte, error) {
	payload, _ := json.Marshal(requestDataReq{Name: name, Offset: offset, Size: size})
	body, err := c.do(ctx, peer, "/request_data", payload)
	if err != nil {
		return nil, err
	}
	var env chunkResponse
	if _, err := env.UnmarshalMsg(body); err != nil {
		return nil, qerrors.NewProtocolError("decoding request_data response", err)
	}
	return env.Data, nil
}

func (c *Client) CopyFile(ctx context.Context, peer cluster.ContactInfo, version int, name string, src cluster.ContactInfo) error {
	payload, _ := json.Marshal(copyFileReq{Version: version, Name: name, IP: src.IP, Port: src.Port})
	_, err := c.do(ctx, peer, "/copy_file", payload)
	return err
}

func (c *Client) FinishRead(ctx context.Context, peer cluster.ContactInfo, ticket int64) error {
	payload, _ := json.Marshal(finishReadReq{Ticket: ticket})
	_, err := c.do(ctx, peer, "/finish_read", payload)
	return err
}

func (c *Client) FinishWrite(ctx context.Context, peer cluster.ContactInfo, ticket int64, version int, name string, src, origin cluster.ContactInfo) error {
	payload, _ := json.Marshal(finishWriteReq{
		Ticket: ticket, Version: version, Name: name,
		SrcIP: src.IP, SrcPort: src.Port,
		OriginIP: origin.IP, OriginPort: origin.Port,
	})
	_, err := c.do(ctx, peer, "/finish_write", payload)
	return err
}
