// Package aria2 is a ports.LocalDownloader backed by a real aria2 daemon's
// JSON-RPC 2.0 interface (https://aria2.github.io/manual/en/html/aria2c.html#rpc-interface).
// There is no JSON-RPC library in the retrieved pack, so the client is a
// thin hand-rolled wrapper over net/http + encoding/json, following the
// same request/response shape every RPC method shares.
package aria2

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"torrentstream/internal/domain/ports"
	"torrentstream/internal/metrics"
	"torrentstream/internal/telemetry"
)

const defaultTimeout = 15 * time.Second

// Client is a ports.LocalDownloader talking JSON-RPC 2.0 to aria2c.
type Client struct {
	rpcURL string
	secret string
	http   *http.Client
	nextID int64
}

type Config struct {
	RPCURL     string // e.g. "http://127.0.0.1:6800/jsonrpc"
	Secret     string // aria2's --rpc-secret, sent as "token:<secret>"
	HTTPClient *http.Client
}

func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &Client{rpcURL: cfg.RPCURL, secret: cfg.Secret, http: httpClient}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	if c.secret != "" {
		params = append([]any{"token:" + c.secret}, params...)
	}
	id := atomic.AddInt64(&c.nextID, 1)
	req := rpcRequest{JSONRPC: "2.0", ID: fmt.Sprintf("torrentstream-%d", id), Method: method, Params: params}

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("aria2 rpc %s: http %d: %s", method, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return err
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("aria2 rpc %s: %d: %s", method, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if out == nil || len(rpcResp.Result) == 0 {
		return nil
	}
	return json.Unmarshal(rpcResp.Result, out)
}

func (c *Client) beginCall(ctx context.Context, op string) (context.Context, func(err *error)) {
	spanCtx, span := telemetry.Tracer().Start(ctx, "downloader.local."+op)
	return spanCtx, func(errp *error) {
		outcome := "ok"
		if errp != nil && *errp != nil {
			outcome = "error"
		}
		metrics.DownloaderCallsTotal.WithLabelValues(op, outcome).Inc()
		span.End()
	}
}

func (c *Client) AddURI(ctx context.Context, uri, outputPath string) (gid string, err error) {
	spanCtx, end := c.beginCall(ctx, "AddURI")
	defer func() { end(&err) }()

	options := map[string]string{}
	if outputPath != "" {
		if dir, file := splitOutputPath(outputPath); dir != "" {
			options["dir"] = dir
			options["out"] = file
		} else {
			options["out"] = file
		}
	}

	if err = c.call(spanCtx, "aria2.addUri", []any{[]string{uri}, options}, &gid); err != nil {
		return "", err
	}
	return gid, nil
}

func splitOutputPath(outputPath string) (dir, file string) {
	idx := strings.LastIndexByte(outputPath, '/')
	if idx < 0 {
		return "", outputPath
	}
	return outputPath[:idx], outputPath[idx+1:]
}

// aria2's own status strings, from aria2.tellStatus's "status" field.
const (
	aria2StatusActive   = "active"
	aria2StatusWaiting  = "waiting"
	aria2StatusPaused   = "paused"
	aria2StatusError    = "error"
	aria2StatusComplete = "complete"
	aria2StatusRemoved  = "removed"
)

func (c *Client) TellStatus(ctx context.Context, gid string) (status ports.LocalStatus, err error) {
	spanCtx, end := c.beginCall(ctx, "TellStatus")
	defer func() { end(&err) }()

	var result struct {
		Status string `json:"status"`
	}
	if err = c.call(spanCtx, "aria2.tellStatus", []any{gid, []string{"status"}}, &result); err != nil {
		return "", err
	}

	switch result.Status {
	case aria2StatusActive:
		return ports.LocalActive, nil
	case aria2StatusWaiting:
		return ports.LocalWaiting, nil
	case aria2StatusPaused:
		return ports.LocalPaused, nil
	case aria2StatusError:
		return ports.LocalError, nil
	case aria2StatusComplete:
		return ports.LocalComplete, nil
	case aria2StatusRemoved:
		return ports.LocalRemoved, nil
	default:
		return "", fmt.Errorf("aria2: unrecognized status %q for gid %s", result.Status, gid)
	}
}

func (c *Client) Pause(ctx context.Context, gid string) (err error) {
	spanCtx, end := c.beginCall(ctx, "Pause")
	defer func() { end(&err) }()
	var discard string
	return c.call(spanCtx, "aria2.pause", []any{gid}, &discard)
}

func (c *Client) Unpause(ctx context.Context, gid string) (err error) {
	spanCtx, end := c.beginCall(ctx, "Unpause")
	defer func() { end(&err) }()
	var discard string
	return c.call(spanCtx, "aria2.unpause", []any{gid}, &discard)
}

func (c *Client) Remove(ctx context.Context, gid string) (err error) {
	spanCtx, end := c.beginCall(ctx, "Remove")
	defer func() { end(&err) }()
	var discard string
	return c.call(spanCtx, "aria2.remove", []any{gid}, &discard)
}
