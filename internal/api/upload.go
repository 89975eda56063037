package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/kuitang/notebook/internal/errs"
	"github.com/kuitang/notebook/internal/upload"
)

// multipartOverhead is the slack allowed on top of the file size for
// multipart boundaries and headers.
const multipartOverhead = 1 << 20

// uploadField is the multipart field carrying the image.
const uploadField = "image"

// UploadImage handles POST /api/upload - stores a multipart "image" and returns its URL
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.uploads.MaxBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)

	if err := r.ParseMultipartForm(maxBytes + multipartOverhead); err != nil {
		writeError(w, r, multipartError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		writeError(w, r, multipartError(err))
		return
	}
	defer file.Close()

	// One byte past the limit is enough for the gateway to report the size
	// after it has checked the content type.
	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.uploads.Upload(r.Context(), data, header.Header.Get("Content-Type"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func multipartError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errs.Wrap(errs.PayloadTooLarge, upload.MsgTooLarge, err)
	}
	// Missing part, non-multipart body or a malformed form.
	return errs.Wrap(errs.InvalidArgument, upload.MsgNoFile, err)
}
