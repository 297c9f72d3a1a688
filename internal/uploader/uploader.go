// Package uploader transfers observation images to object storage via
// presigned destinations issued by the remote service.
package uploader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/open2log/open2log-go/internal/api"
	"github.com/open2log/open2log-go/internal/imaging"
	"github.com/open2log/open2log-go/internal/model"
)

// ErrUploadFailed is returned when the raw transfer to the presigned
// destination does not yield a 2xx status.
var ErrUploadFailed = errors.New("image upload failed")

// PresignClient issues presigned upload destinations.
type PresignClient interface {
	UploadURL(ctx context.Context, filename, contentType, uploadType string) (*api.UploadURLResponse, error)
}

// Uploader uploads image bytes and returns their public reference. Image
// transfers get a longer timeout than metadata calls.
type Uploader struct {
	presign    PresignClient
	httpClient *http.Client
}

// New creates an Uploader. A zero timeout defaults to 60s.
func New(presign PresignClient, timeout time.Duration) *Uploader {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Uploader{
		presign:    presign,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Upload classifies the image bytes, requests a presigned destination for a
// fresh random filename, transfers the bytes, and returns the public URL.
// Each call produces a new object; callers must not re-upload an attachment
// that already has its uploaded flag set.
func (u *Uploader) Upload(ctx context.Context, data []byte, kind model.ImageKind) (string, error) {
	contentType := imaging.DetectContentType(data)
	filename := uuid.NewString() + "." + imaging.FileExtension(contentType)

	dest, err := u.presign.UploadURL(ctx, filename, contentType, string(kind))
	if err != nil {
		return "", fmt.Errorf("request upload url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, dest.UploadURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transfer image: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d", ErrUploadFailed, resp.StatusCode)
	}

	return dest.PublicURL, nil
}
