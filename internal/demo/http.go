package demo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/apsara-ai/derma/internal/domain/types"
)

// Client speaks the service's HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a demo API client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Analyze submits one image to the analyze endpoint.
func (c *Client) Analyze(ctx context.Context, upload Upload) (types.AnalysisResult, error) {
	body, contentType, err := imageForm(upload, nil)
	if err != nil {
		return types.AnalysisResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/skin/analyze", body)
	if err != nil {
		return types.AnalysisResult{}, fmt.Errorf("build analyze request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	var result types.AnalysisResult
	if err := c.do(req, &result); err != nil {
		return types.AnalysisResult{}, err
	}
	return result, nil
}

// Chat posts one message, returning the reply with its session id.
func (c *Client) Chat(ctx context.Context, sessionID, message string) (types.ChatReply, error) {
	payload, err := json.Marshal(map[string]string{
		"message":    message,
		"session_id": sessionID,
	})
	if err != nil {
		return types.ChatReply{}, fmt.Errorf("encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return types.ChatReply{}, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var reply types.ChatReply
	if err := c.do(req, &reply); err != nil {
		return types.ChatReply{}, err
	}
	return reply, nil
}

// AttachImage uploads an image into an existing chat session.
func (c *Client) AttachImage(ctx context.Context, sessionID string, upload Upload) (types.ChatReply, error) {
	body, contentType, err := imageForm(upload, map[string]string{"session_id": sessionID})
	if err != nil {
		return types.ChatReply{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat/analyze-image", body)
	if err != nil {
		return types.ChatReply{}, fmt.Errorf("build attach request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	var reply types.ChatReply
	if err := c.do(req, &reply); err != nil {
		return types.ChatReply{}, err
	}
	return reply, nil
}

// ExportSession fetches the session snapshot.
func (c *Client) ExportSession(ctx context.Context, sessionID string) (types.SessionExport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/chat/session/"+sessionID, nil)
	if err != nil {
		return types.SessionExport{}, fmt.Errorf("build export request: %w", err)
	}

	var export types.SessionExport
	if err := c.do(req, &export); err != nil {
		return types.SessionExport{}, err
	}
	return export, nil
}

// Stats fetches the service stats endpoint.
func (c *Client) Stats(ctx context.Context) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/stats", nil)
	if err != nil {
		return nil, fmt.Errorf("build stats request: %w", err)
	}

	var stats map[string]interface{}
	if err := c.do(req, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", req.URL.Path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %d: %s", req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func imageForm(upload Upload, fields map[string]string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("write form field: %w", err)
		}
	}
	fw, err := mw.CreateFormFile("file", upload.Name+".png")
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(upload.Image); err != nil {
		return nil, "", fmt.Errorf("write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}
