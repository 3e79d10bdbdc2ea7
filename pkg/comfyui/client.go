// Package comfyui is an HTTP client for the remote graph execution engine.
package comfyui

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"time"

	"github.com/bytedance/sonic"
	"github.com/dukex/ximager/pkg/config"
	"github.com/dukex/ximager/pkg/models"
)

const defaultTimeout = 30 * time.Second

// Client talks to the engine whose address is held by a config.Handle.
type Client struct {
	handle *config.Handle
	http   *http.Client
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.http = httpClient
	}
}

func NewClient(handle *config.Handle, logger *slog.Logger, opts ...Option) *Client {
	client := &Client{
		handle: handle,
		http:   &http.Client{Timeout: defaultTimeout},
		logger: logger.With("module", "comfyui_client"),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// ServerURL returns the engine address currently in use.
func (c *Client) ServerURL() string {
	return c.handle.ServerURL()
}

type uploadResponse struct {
	Name      string `json:"name"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

// UploadImage sends asset as multipart field "image" with overwrite enabled and returns
// the filename the engine assigned.
func (c *Client) UploadImage(ctx context.Context, asset models.Asset) (string, error) {
	var body bytes.Buffer

	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, asset.Filename))

	contentType := asset.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("failed to create multipart part: %w", err)
	}

	if _, err := part.Write(asset.Content); err != nil {
		return "", fmt.Errorf("failed to write multipart part: %w", err)
	}

	if err := writer.WriteField("overwrite", "true"); err != nil {
		return "", fmt.Errorf("failed to write overwrite field: %w", err)
	}

	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart body: %w", err)
	}

	var resp uploadResponse

	err = c.doJSON(ctx, "upload image", http.MethodPost, "/upload/image", nil, &body, writer.FormDataContentType(), &resp)
	if err != nil {
		return "", err
	}

	if resp.Name == "" {
		return "", fmt.Errorf("failed to upload image: %w", ErrEmptyResponse)
	}

	c.logger.DebugContext(ctx, "Uploaded image", "filename", asset.Filename, "name", resp.Name)

	return resp.Name, nil
}

type promptRequest struct {
	Prompt   models.ExecutionGraph `json:"prompt"`
	ClientID string                `json:"client_id"`
}

type promptResponse struct {
	PromptID string `json:"prompt_id"`
	Number   int    `json:"number"`
}

// QueuePrompt submits graph and returns the engine's run identifier.
func (c *Client) QueuePrompt(ctx context.Context, graph models.ExecutionGraph, clientID string) (string, error) {
	payload, err := sonic.Marshal(promptRequest{Prompt: graph, ClientID: clientID})
	if err != nil {
		return "", fmt.Errorf("failed to encode prompt: %w", err)
	}

	var resp promptResponse

	err = c.doJSON(ctx, "queue prompt", http.MethodPost, "/prompt", nil, bytes.NewReader(payload), "application/json", &resp)
	if err != nil {
		return "", err
	}

	if resp.PromptID == "" {
		return "", fmt.Errorf("failed to queue prompt: %w", ErrEmptyResponse)
	}

	return resp.PromptID, nil
}

// History returns the execution record of promptID, or nil while the engine has none.
func (c *Client) History(ctx context.Context, promptID string) (*models.ResultRecord, error) {
	var resp map[string]*models.ResultRecord

	err := c.doJSON(ctx, "get history", http.MethodGet, "/history/"+url.PathEscape(promptID), nil, nil, "", &resp)
	if err != nil {
		return nil, err
	}

	return resp[promptID], nil
}

// View downloads a rendered asset.
func (c *Client) View(ctx context.Context, ref models.OutputRef) (models.Asset, error) {
	kind := ref.Type
	if kind == "" {
		kind = models.DefaultOutputType
	}

	query := url.Values{}
	query.Set("filename", ref.Filename)
	query.Set("subfolder", ref.Subfolder)
	query.Set("type", kind)

	resp, err := c.Do(ctx, http.MethodGet, "/view", query, nil, "")
	if err != nil {
		return models.Asset{}, fmt.Errorf("failed to get image: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Asset{}, fmt.Errorf("failed to read image: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.Asset{}, newHTTPError("get image", resp, body)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}

	return models.Asset{Filename: ref.Filename, ContentType: contentType, Content: body}, nil
}

// SystemStats returns the engine's system_stats document.
func (c *Client) SystemStats(ctx context.Context) (map[string]any, error) {
	var stats map[string]any

	err := c.doJSON(ctx, "get system stats", http.MethodGet, "/system_stats", nil, nil, "", &stats)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// Do sends a raw request to the engine. The caller owns the response body.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) (*http.Response, error) {
	target := c.handle.ServerURL() + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}

	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, query url.Values, body io.Reader, contentType string, dest any) error {
	resp, err := c.Do(ctx, method, path, query, body, contentType)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.WarnContext(ctx, "Engine rejected request", "op", op, "status", resp.StatusCode)

		return newHTTPError(op, resp, data)
	}

	if err := sonic.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to %s: invalid response: %w", op, err)
	}

	return nil
}
