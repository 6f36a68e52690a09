package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"gallery/internal/credentials"
	"gallery/internal/services"
)

// Ingest uploads one image with its metadata using HTTP Basic credentials.
func (c *Client) Ingest(ctx context.Context, creds credentials.Credentials, req IngestRequest) (IngestResult, error) {
	if !creds.Complete() {
		return IngestResult{}, services.Wrap(services.ErrUnauthorized, "backend", "ingest", "credentials required", nil)
	}
	fields := []formField{
		{name: "title", value: req.Title},
		{name: "description", value: req.Description},
		{name: "taken_time", value: req.TakenTime},
		{name: "camera", value: req.Camera},
	}
	body, contentType, err := buildForm(req.FilePath, req.FileName, req.ContentType, fields)
	if err != nil {
		return IngestResult{}, err
	}
	var result IngestResult
	err = c.do(ctx, ForwardRequest{
		Method:        http.MethodPost,
		Path:          "/ingest",
		Body:          body,
		ContentType:   contentType,
		Authorization: creds.BasicAuth(),
	}, &result)
	return result, err
}

// GenerateDescription asks the backend to caption the image at path.
func (c *Client) GenerateDescription(ctx context.Context, path string) (Description, error) {
	body, contentType, err := buildForm(path, "", "", nil)
	if err != nil {
		return Description{}, err
	}
	var desc Description
	err = c.do(ctx, ForwardRequest{
		Method:      http.MethodPost,
		Path:        "/generate-description",
		Body:        body,
		ContentType: contentType,
	}, &desc)
	return desc, err
}

type formField struct {
	name  string
	value string
}

// buildForm encodes path as the `file` part followed by the non-empty fields.
func buildForm(path, name, contentType string, fields []formField) (io.Reader, string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, "", services.Wrap(services.ErrValidation, "backend", "upload", "open file", err)
	}
	defer file.Close()

	if strings.TrimSpace(name) == "" {
		name = filepath.Base(path)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("copy %s: %w", path, err)
	}
	for _, field := range fields {
		if field.value == "" {
			continue
		}
		if err := writer.WriteField(field.name, field.value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", field.name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}
