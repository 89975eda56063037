// Package upload accepts image bytes and turns them into an addressable URL.
//
// A Gateway validates the payload and hands it to a Backend. The Backend is
// picked once at construction: S3Backend for real object storage, or
// PlaceholderBackend when storage credentials are not configured.
package upload

import (
	"context"
	"fmt"
	"mime"
	"strings"

	"github.com/kuitang/notebook/internal/errs"
	"github.com/kuitang/notebook/internal/obs"
)

const (
	// DefaultMaxBytes is the largest accepted upload (5 MiB).
	DefaultMaxBytes int64 = 5 << 20

	// Namespace is the key prefix every stored object lives under.
	Namespace = "notebook-app"
)

// User-facing messages.
const (
	MsgImagesOnly = "Only image files are allowed"
	MsgNoFile     = "No file uploaded"
	MsgTooLarge   = "File too large"
)

// AllowedFormats lists the image formats a backend may store.
var AllowedFormats = []string{"jpeg", "png", "gif", "webp"}

// Object is a validated upload handed to a Backend.
type Object struct {
	Data           []byte
	ContentType    string
	Namespace      string
	AllowedFormats []string
}

// Result is the outcome of a successful upload. Message is set only by
// backends that want to tell the caller something about the URL.
type Result struct {
	URL     string `json:"url"`
	Message string `json:"message,omitempty"`
}

// Backend stores an object and returns its URL. Implementations make a single
// attempt and never retry.
type Backend interface {
	Store(ctx context.Context, obj Object) (Result, error)
	Name() string
}

// Gateway validates uploads and delegates storage to its Backend.
type Gateway struct {
	backend  Backend
	maxBytes int64
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithMaxBytes overrides DefaultMaxBytes. Non-positive values are ignored.
func WithMaxBytes(n int64) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.maxBytes = n
		}
	}
}

// New creates a gateway around backend.
func New(backend Backend, opts ...Option) *Gateway {
	g := &Gateway{backend: backend, maxBytes: DefaultMaxBytes}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// MaxBytes returns the largest payload Upload accepts.
func (g *Gateway) MaxBytes() int64 {
	return g.maxBytes
}

// BackendName reports which strategy the gateway was built with.
func (g *Gateway) BackendName() string {
	return g.backend.Name()
}

// Upload stores data and returns its URL.
func (g *Gateway) Upload(ctx context.Context, data []byte, contentType string) (*Result, error) {
	if !IsImage(contentType) {
		return nil, errs.New(errs.InvalidArgument, MsgImagesOnly)
	}
	if int64(len(data)) > g.maxBytes {
		return nil, errs.New(errs.PayloadTooLarge, MsgTooLarge)
	}
	if len(data) == 0 {
		return nil, errs.New(errs.InvalidArgument, MsgNoFile)
	}

	res, err := g.backend.Store(ctx, Object{
		Data:           data,
		ContentType:    contentType,
		Namespace:      Namespace,
		AllowedFormats: AllowedFormats,
	})
	if err != nil {
		obs.From(ctx).Warn("upload failed",
			"pkg", "upload",
			"backend", g.backend.Name(),
			"size", len(data),
			"error", err,
		)
		if errs.CodeOf(err) == errs.UploadFailed {
			return nil, err
		}
		return nil, errs.Wrap(errs.UploadFailed, fmt.Sprintf("Upload failed: %v", err), err)
	}

	obs.From(ctx).Info("image uploaded",
		"pkg", "upload",
		"backend", g.backend.Name(),
		"size", len(data),
	)
	return &res, nil
}

// IsImage reports whether contentType names an image/* media type.
func IsImage(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.HasPrefix(mediaType, "image/") && len(mediaType) > len("image/")
}
