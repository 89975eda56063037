package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/kuitang/notebook/internal/errs"
	"github.com/kuitang/notebook/internal/logutil"
	"github.com/kuitang/notebook/internal/obs"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 1 << 20

// MsgInvalidJSON is returned for request bodies that do not decode.
const MsgInvalidJSON = "Invalid JSON"

// Envelope is the body of every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeData writes a success envelope carrying data.
func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{Success: true, Data: data})
}

// writeMessage writes a success envelope carrying only a message.
func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, Envelope{Success: true, Message: message})
}

// writeError maps err to its status and writes a failure envelope. Uncoded
// errors surface as "internal error"; their detail only reaches the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errs.CodeOf(err)
	status := errs.HTTPStatus(code)

	logger := obs.From(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			"pkg", "api",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"code", code,
			"headers", logutil.FormatHeadersForLog(r.Header),
			"error", err,
		)
	} else {
		logger.Debug("request rejected",
			"pkg", "api",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"code", code,
			"error", err,
		)
	}

	writeJSON(w, status, Envelope{Success: false, Error: errs.MessageOf(err)})
}

// decodeJSON decodes the request body into dst. An empty body leaves dst unchanged.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.As(err, &tooLarge):
			return errs.Wrap(errs.PayloadTooLarge, "Request body too large", err)
		default:
			return errs.Wrap(errs.InvalidArgument, MsgInvalidJSON, err)
		}
	}
	return nil
}
