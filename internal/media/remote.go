package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"
)

// Remote uploads attachments to the off-chain storage service via
// multipart/form-data and returns the content URL it assigns.
type Remote struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewRemote creates a remote backend for the storage service.
func NewRemote(baseURL string, timeout time.Duration) *Remote {
	return &Remote{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Upload posts the attachment as the "file" field and returns the assigned
// content URL.
func (r *Remote) Upload(ctx context.Context, att Attachment) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", att.Filename)
	if err != nil {
		return "", fmt.Errorf("media: build form: %w", err)
	}
	if _, err := fw.Write(att.Data); err != nil {
		return "", fmt.Errorf("media: write form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("media: close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/upload", &buf)
	if err != nil {
		return "", fmt.Errorf("media: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("media: upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("media: upload: HTTP %d", resp.StatusCode)
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("media: decode response: %w", err)
	}
	if out.URL == "" {
		return "", fmt.Errorf("media: storage returned no url")
	}
	return out.URL, nil
}
