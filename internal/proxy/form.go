package proxy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

// formEntry is one multipart field, kept in arrival order so it can be replayed.
type formEntry struct {
	Name        string
	FileName    string
	ContentType string
	Data        []byte
}

func (e formEntry) isFile() bool {
	return e.FileName != ""
}

// readEntries drains a multipart request into memory, preserving field order
// and repeated keys.
func readEntries(r *http.Request) ([]formEntry, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("parse content type: %w", err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return nil, fmt.Errorf("expected multipart form data, got %q", mediaType)
	}
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("open multipart body: %w", err)
	}

	var entries []formEntry
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read multipart part: %w", err)
		}
		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return nil, fmt.Errorf("read field %q: %w", part.FormName(), err)
		}
		entry := formEntry{
			Name:     part.FormName(),
			FileName: part.FileName(),
			Data:     data,
		}
		if entry.isFile() {
			entry.ContentType = part.Header.Get("Content-Type")
			if entry.ContentType == "" {
				entry.ContentType = "application/octet-stream"
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// buildBody materializes a fresh multipart body from entries. A multipart
// stream cannot be replayed, so each attempt gets its own body.
func buildBody(entries []formEntry) (*bytes.Buffer, string, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	for _, e := range entries {
		var (
			field io.Writer
			err   error
		)
		if e.isFile() {
			h := make(textproto.MIMEHeader)
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
				escapeQuotes(e.Name), escapeQuotes(e.FileName)))
			h.Set("Content-Type", e.ContentType)
			field, err = w.CreatePart(h)
		} else {
			field, err = w.CreateFormField(e.Name)
		}
		if err != nil {
			return nil, "", err
		}
		if _, err := field.Write(e.Data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &b, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
