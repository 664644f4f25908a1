package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// ListFiles returns the uploaded files of a project.
func (c *Client) ListFiles(ctx context.Context, projectID ID) ([]ProjectFile, error) {
	return listCollection[ProjectFile](ctx, c, projectID, collFiles, "files")
}

// UploadFile sends content as a multipart form with the "file" part and the
// "originalName" field. Uploads use the upload timeout.
func (c *Client) UploadFile(ctx context.Context, projectID ID, name string, content io.Reader) (*ProjectFile, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("copy file content: %w", err)
	}
	if err := w.WriteField("originalName", name); err != nil {
		return nil, fmt.Errorf("write original name: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	var out ProjectFile
	err = c.send(ctx, call{
		method:  http.MethodPost,
		route:   "/api/projects/:id/files",
		path:    projectPath(projectID, collFiles),
		out:     &out,
		timeout: c.timeouts.Upload,
	}, &buf, w.FormDataContentType())
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteFile removes an uploaded file.
func (c *Client) DeleteFile(ctx context.Context, projectID, fileID ID) error {
	return deleteFromCollection(ctx, c, projectID, collFiles, fileID)
}
