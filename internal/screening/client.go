// Package screening submits resumes to the forwarding proxy and decodes the
// workflow's answer.
package screening

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
	"unicode/utf8"

	"github.com/Kounain2234/AI-Recruitment-App/internal/analysis"
)

// Submission is one resume plus the job and user metadata the workflow scores against.
type Submission struct {
	FileName    string
	ContentType string
	Data        []byte
	JobID       string
	JobTitle    string
	UserID      string
	ResumeURL   string
}

// Result is a successful workflow response.
type Result struct {
	Status  int
	Payload map[string]any
}

// StatusError is returned for any non-2xx answer from the proxy.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("screening failed with status %d", e.Code)
	}
	return fmt.Sprintf("screening failed with status %d: %s", e.Code, e.Message)
}

// Client posts submissions to the proxy endpoint.
type Client struct {
	endpoint string
	http     *http.Client
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

// Analyze sends sub as multipart form data and parses the JSON answer.
func (c *Client) Analyze(ctx context.Context, sub Submission) (*Result, error) {
	body, contentType, err := encode(sub)
	if err != nil {
		return nil, fmt.Errorf("encode submission: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build screening request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("screening request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read screening response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Message: upstreamMessage(raw)}
	}
	payload, err := analysis.ParsePayload(raw)
	if err != nil {
		return nil, err
	}
	return &Result{Status: resp.StatusCode, Payload: payload}, nil
}

func encode(sub Submission) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	contentType := sub.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(sub.FileName)))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(sub.Data); err != nil {
		return nil, "", err
	}

	fields := []struct{ name, value string }{
		{"job_id", sub.JobID},
		{"job_title", sub.JobTitle},
		{"user_id", sub.UserID},
		{"resume_url", sub.ResumeURL},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// upstreamMessage pulls a readable message out of an error body.
func upstreamMessage(raw []byte) string {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err == nil {
		for _, key := range []string{"error", "message", "raw"} {
			if s, ok := body[key].(string); ok && s != "" {
				return truncate(s)
			}
		}
	}
	return truncate(strings.TrimSpace(string(raw)))
}

func truncate(s string) string {
	const limit = 300
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
