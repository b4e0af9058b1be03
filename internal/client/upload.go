package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"lexchat/internal/types"
)

// UploadDocument streams a file to the Chat API as multipart form data and
// returns the server's document id.
func (c *Client) UploadDocument(ctx context.Context, doc types.DocumentUpload) (string, error) {
	if doc.Body == nil {
		return "", errors.New("upload: document body is required")
	}
	fileName := filepath.Base(strings.TrimSpace(doc.FileName))
	if fileName == "" || fileName == "." {
		return "", errors.New("upload: file name is required")
	}

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/documents/upload", pr)
	if err != nil {
		_ = pr.Close()
		return "", err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	written := make(chan struct{})
	go func() {
		defer close(written)
		pw.CloseWithError(writeUploadForm(form, fileName, doc))
	}()

	body, err := c.do(req)
	// The server may answer before reading the whole body. Closing the read
	// side unblocks the writer; doc.Body is not touched after this returns.
	_ = pr.Close()
	<-written
	if err != nil {
		return "", err
	}
	root := gjson.ParseBytes(body)
	if id := firstNonEmpty(root.Get("document_id").String(), root.Get("id").String()); id != "" {
		return id, nil
	}
	// Some deployments answer with only a success message.
	return uuid.NewString(), nil
}

func writeUploadForm(form *multipart.Writer, fileName string, doc types.DocumentUpload) error {
	part, err := form.CreateFormFile("file", fileName)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, doc.Body); err != nil {
		return fmt.Errorf("upload: copy %s: %w", fileName, err)
	}
	displayName := strings.TrimSpace(doc.DisplayName)
	if displayName == "" {
		displayName = fileName
	}
	fields := [][2]string{
		{"display_name", displayName},
		{"description", doc.Description},
		{"session_id", strings.TrimSpace(doc.SessionID)},
	}
	for _, field := range fields {
		if field[1] == "" {
			continue
		}
		if err := form.WriteField(field[0], field[1]); err != nil {
			return err
		}
	}
	return form.Close()
}
