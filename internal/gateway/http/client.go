// Package http is a generic REST-over-HTTP ports.RemoteDrive client: a
// thin JSON wrapper suited to a PikPak-shaped cloud-drive API (bearer
// token auth, one JSON endpoint per operation). Every call is wrapped in
// its own OpenTelemetry span and reported to the shared gateway metrics.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"torrentstream/internal/domain/ports"
	"torrentstream/internal/metrics"
	"torrentstream/internal/telemetry"
)

const defaultTimeout = 15 * time.Second

// Client is a ports.RemoteDrive backed by a real HTTP API.
type Client struct {
	baseURL     string
	accessToken string
	http        *http.Client
}

// Config configures a Client. If HTTPClient is nil, one is built with
// otelhttp.NewTransport wrapping http.DefaultTransport so every round trip
// is a traced span in addition to the gateway.remote.<op> span the
// adapter itself opens.
type Config struct {
	BaseURL     string
	AccessToken string
	HTTPClient  *http.Client
}

func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		accessToken: cfg.AccessToken,
		http:        httpClient,
	}
}

// SetAccessToken updates the bearer token used on subsequent calls, e.g.
// after Login refreshes it.
func (c *Client) SetAccessToken(token string) {
	c.accessToken = token
}

func (c *Client) beginCall(ctx context.Context, op string) (context.Context, func(err *error)) {
	spanCtx, span := telemetry.Tracer().Start(ctx, "gateway.remote."+op)
	start := time.Now()
	return spanCtx, func(errp *error) {
		outcome := "ok"
		if errp != nil && *errp != nil {
			outcome = "error"
		}
		metrics.GatewayCallsTotal.WithLabelValues(op, outcome).Inc()
		metrics.GatewayCallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		span.End()
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return err
	}
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway http %s %s: %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

func (c *Client) Login(ctx context.Context, creds ports.Credentials) (out ports.Credentials, err error) {
	spanCtx, end := c.beginCall(ctx, "Login")
	defer func() { end(&err) }()

	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		UserID       string `json:"sub"`
	}
	reqBody := map[string]string{
		"username":      creds.Username,
		"password":      creds.Password,
		"refresh_token": creds.RefreshToken,
	}
	if err = c.doJSON(spanCtx, http.MethodPost, "/auth/token", nil, reqBody, &resp); err != nil {
		return ports.Credentials{}, err
	}

	out = creds
	out.AccessToken = resp.AccessToken
	out.RefreshToken = resp.RefreshToken
	out.UserID = resp.UserID
	c.accessToken = resp.AccessToken
	return out, nil
}

func (c *Client) FileList(ctx context.Context, parentID, continuationToken string) (page ports.FileListPage, err error) {
	spanCtx, end := c.beginCall(ctx, "FileList")
	defer func() { end(&err) }()

	query := url.Values{"parent_id": {parentID}}
	if continuationToken != "" {
		query.Set("page_token", continuationToken)
	}

	var resp struct {
		Files []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			Kind string `json:"kind"`
		} `json:"files"`
		NextPageToken string `json:"next_page_token"`
	}
	if err = c.doJSON(spanCtx, http.MethodGet, "/drive/v1/files", query, nil, &resp); err != nil {
		return ports.FileListPage{}, err
	}

	files := make([]ports.RemoteFile, 0, len(resp.Files))
	for _, f := range resp.Files {
		files = append(files, ports.RemoteFile{ID: f.ID, Name: f.Name, Kind: f.Kind})
	}
	return ports.FileListPage{Files: files, NextPageToken: resp.NextPageToken}, nil
}

func (c *Client) CreateFolder(ctx context.Context, name, parentID string) (created ports.CreatedFolder, err error) {
	spanCtx, end := c.beginCall(ctx, "CreateFolder")
	defer func() { end(&err) }()

	var resp struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	reqBody := map[string]string{"name": name, "parent_id": parentID, "kind": "folder"}
	if err = c.doJSON(spanCtx, http.MethodPost, "/drive/v1/files", nil, reqBody, &resp); err != nil {
		return ports.CreatedFolder{}, err
	}
	return ports.CreatedFolder{ID: resp.ID, Name: resp.Name}, nil
}

func (c *Client) GetDownloadURL(ctx context.Context, fileID string) (downloadURL string, err error) {
	spanCtx, end := c.beginCall(ctx, "GetDownloadURL")
	defer func() { end(&err) }()

	var resp struct {
		URL string `json:"web_content_link"`
	}
	if err = c.doJSON(spanCtx, http.MethodGet, "/drive/v1/files/"+url.PathEscape(fileID), nil, nil, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

func (c *Client) OfflineDownload(ctx context.Context, torrentOrURL, parentID string) (result ports.OfflineDownloadResult, err error) {
	spanCtx, end := c.beginCall(ctx, "OfflineDownload")
	defer func() { end(&err) }()

	var resp struct {
		Task struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"task"`
		File struct {
			ID string `json:"id"`
		} `json:"file"`
	}
	reqBody := map[string]string{"url": torrentOrURL, "parent_id": parentID}
	if err = c.doJSON(spanCtx, http.MethodPost, "/drive/v1/files", nil, reqBody, &resp); err != nil {
		return ports.OfflineDownloadResult{}, err
	}
	return ports.OfflineDownloadResult{TaskID: resp.Task.ID, FileID: resp.File.ID, Name: resp.Task.Name}, nil
}

func (c *Client) GetTaskStatus(ctx context.Context, taskID, fileID string) (status ports.RemoteTaskStatus, err error) {
	spanCtx, end := c.beginCall(ctx, "GetTaskStatus")
	defer func() { end(&err) }()

	var resp struct {
		Phase string `json:"phase"`
	}
	query := url.Values{"file_id": {fileID}}
	if err = c.doJSON(spanCtx, http.MethodGet, "/drive/v1/tasks/"+url.PathEscape(taskID), query, nil, &resp); err != nil {
		return "", err
	}
	return mapPhase(resp.Phase), nil
}

func mapPhase(phase string) ports.RemoteTaskStatus {
	switch phase {
	case "PHASE_TYPE_COMPLETE":
		return ports.RemoteDone
	case "PHASE_TYPE_RUNNING", "PHASE_TYPE_PENDING":
		return ports.RemoteDownloading
	case "PHASE_TYPE_ERROR":
		return ports.RemoteError
	case "":
		return ports.RemoteNotFound
	default:
		return ports.RemoteNotDownloading
	}
}

func (c *Client) OfflineFileInfo(ctx context.Context, fileID string) (info ports.OfflineFileInfo, err error) {
	spanCtx, end := c.beginCall(ctx, "OfflineFileInfo")
	defer func() { end(&err) }()

	var resp struct {
		Kind     string `json:"kind"`
		ParentID string `json:"parent_id"`
		Name     string `json:"name"`
	}
	if err = c.doJSON(spanCtx, http.MethodGet, "/drive/v1/files/"+url.PathEscape(fileID), nil, nil, &resp); err != nil {
		return ports.OfflineFileInfo{}, err
	}
	return ports.OfflineFileInfo{Kind: strings.ToLower(resp.Kind), ParentID: resp.ParentID, Name: resp.Name}, nil
}

func (c *Client) DeleteToTrash(ctx context.Context, fileIDs []string) (err error) {
	spanCtx, end := c.beginCall(ctx, "DeleteToTrash")
	defer func() { end(&err) }()

	reqBody := map[string][]string{"ids": fileIDs}
	return c.doJSON(spanCtx, http.MethodPost, "/drive/v1/files:batchTrash", nil, reqBody, nil)
}
