package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/menta2k/aurea-media/pkg/resolver"
)

// HTTPConfig configures the portfolio API upload endpoint
type HTTPConfig struct {
	Endpoint  string
	FieldName string
	Token     string
	Timeout   time.Duration
}

// HTTPUploader posts each asset as multipart form data to the portfolio API
// and reads back {"success": true, "data": {"url": "..."}}
type HTTPUploader struct {
	endpoint   string
	fieldName  string
	token      string
	httpClient *http.Client
}

type uploadResponse struct {
	Success bool `json:"success"`
	Data    struct {
		URL string `json:"url"`
	} `json:"data"`
	Message string `json:"message,omitempty"`
}

// NewHTTPUploader creates an uploader for the given endpoint
func NewHTTPUploader(cfg HTTPConfig) (*HTTPUploader, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("storage.http.endpoint is required")
	}
	if !strings.HasPrefix(cfg.Endpoint, "http://") && !strings.HasPrefix(cfg.Endpoint, "https://") {
		return nil, fmt.Errorf("unsupported upload endpoint: %s", cfg.Endpoint)
	}
	field := cfg.FieldName
	if field == "" {
		field = "file"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &HTTPUploader{
		endpoint:   cfg.Endpoint,
		fieldName:  field,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Upload sends the body as a multipart request and returns the stored URL
func (u *HTTPUploader) Upload(ctx context.Context, up resolver.Upload) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := writeMultipart(mw, u.fieldName, up); err != nil {
		return "", fmt.Errorf("failed to build upload body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if u.token != "" {
		req.Header.Set("Authorization", "Bearer "+u.token)
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send upload: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("upload endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out uploadResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to parse upload response: %w", err)
	}
	if !out.Success {
		if out.Message != "" {
			return "", fmt.Errorf("upload rejected: %s", out.Message)
		}
		return "", fmt.Errorf("upload rejected")
	}
	if out.Data.URL == "" {
		return "", fmt.Errorf("upload response has no url")
	}
	return out.Data.URL, nil
}

func writeMultipart(mw *multipart.Writer, field string, up resolver.Upload) error {
	name := up.Name
	if name == "" {
		name = "upload"
	}
	contentType := up.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(field), escapeQuotes(name)))
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, up.Body); err != nil {
		return err
	}
	return mw.Close()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
