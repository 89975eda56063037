package upload

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/kuitang/notebook/internal/errs"
	"github.com/kuitang/notebook/internal/logutil"
	"github.com/kuitang/notebook/internal/s3client"
)

// maxProviderMessage bounds how much provider error text reaches callers.
const maxProviderMessage = 300

// ObjectStore is the subset of *s3client.Client that S3Backend needs.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, content []byte, contentType string) error
	GetPublicURL(key string) string
}

var _ ObjectStore = (*s3client.Client)(nil)

// S3Backend stores images in an S3-compatible bucket.
type S3Backend struct {
	objects ObjectStore
	newID   func() string
}

// NewS3Backend creates a backend writing through objects.
func NewS3Backend(objects ObjectStore) *S3Backend {
	return &S3Backend{objects: objects, newID: uuid.NewString}
}

// Store sniffs the image format, rejects formats outside obj.AllowedFormats,
// and writes the bytes under obj.Namespace in one PutObject call.
func (b *S3Backend) Store(ctx context.Context, obj Object) (Result, error) {
	format, contentType := sniffFormat(obj.Data)
	if format == "" || !slices.Contains(obj.AllowedFormats, format) {
		shown := format
		if shown == "" {
			shown = "unknown"
		}
		return Result{}, errs.New(errs.UploadFailed,
			fmt.Sprintf("Image file format %s not allowed", shown))
	}

	key := path.Join(obj.Namespace, b.newID()+"."+extension(format))
	if err := b.objects.PutObject(ctx, key, obj.Data, contentType); err != nil {
		msg := logutil.TruncateForLog(err.Error(), maxProviderMessage)
		return Result{}, errs.Wrap(errs.UploadFailed, "Upload failed: "+msg, err)
	}
	return Result{URL: b.objects.GetPublicURL(key)}, nil
}

func (b *S3Backend) Name() string { return "s3" }

// sniffFormat inspects the leading bytes and returns the short format name
// together with the detected media type.
func sniffFormat(data []byte) (format, contentType string) {
	contentType = http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return "", contentType
	}
	return strings.TrimPrefix(contentType, "image/"), contentType
}

func extension(format string) string {
	if format == "jpeg" {
		return "jpg"
	}
	return format
}
