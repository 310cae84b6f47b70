// Package docsource fetches source documents from Google Drive as .docx.
package docsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the Drive v3 REST endpoint.
	DefaultBaseURL = "https://www.googleapis.com/drive/v3"

	docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	maxExportBytes = 100 << 20
)

// Client exports Google Docs through the Drive API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Export is a document exported as .docx bytes.
type Export struct {
	FileID       string
	Name         string
	ModifiedTime time.Time
	Data         []byte
}

// Filename is the name the export is parsed under.
func (e *Export) Filename() string {
	return e.Name + ".docx"
}

// RetryableError indicates a transient Drive failure (429 or 5xx).
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, e.Message)
}

type fileMeta struct {
	Name         string    `json:"name"`
	ModifiedTime time.Time `json:"modifiedTime"`
}

// Export fetches the document's name and its .docx rendering.
func (c *Client) Export(ctx context.Context, fileID string) (*Export, error) {
	if fileID == "" {
		return nil, fmt.Errorf("empty file id")
	}
	id := url.PathEscape(fileID)

	body, err := c.get(ctx, "/files/"+id+"?fields=name,modifiedTime&supportsAllDrives=true", 1<<20)
	if err != nil {
		return nil, fmt.Errorf("get file metadata: %w", err)
	}
	var meta fileMeta
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("decode file metadata: %w", err)
	}

	data, err := c.get(ctx, "/files/"+id+"/export?mimeType="+url.QueryEscape(docxMIME), maxExportBytes)
	if err != nil {
		return nil, fmt.Errorf("export file: %w", err)
	}

	name := meta.Name
	if name == "" {
		name = fileID
	}
	return &Export{FileID: fileID, Name: name, ModifiedTime: meta.ModifiedTime, Data: data}, nil
}

func (c *Client) get(ctx context.Context, path string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, &RetryableError{StatusCode: resp.StatusCode, Message: string(respBody)}
		}
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("response exceeds %d bytes", limit)
	}
	return data, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
