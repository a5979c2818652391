// Package httputil centralizes OCPI envelope writing so every handler emits
// the same wire shape: {data, status_code, status_message, timestamp} with
// the HTTP status carrying transport meaning and status_code carrying
// protocol meaning.
package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"

	dErrors "ocpigw/pkg/domain-errors"
	"ocpigw/pkg/ocpi"
	"ocpigw/pkg/requestcontext"
)

type envelope struct {
	Data          any            `json:"data,omitempty"`
	StatusCode    int            `json:"status_code"`
	StatusMessage string         `json:"status_message,omitempty"`
	Timestamp     ocpi.Timestamp `json:"timestamp"`
}

// WriteData writes a success envelope around data with HTTP 200.
func WriteData(w http.ResponseWriter, r *http.Request, data any) {
	WriteEnvelope(w, r, http.StatusOK, data, ocpi.StatusSuccess, "")
}

// WriteSuccess writes a data-less success envelope carrying only a message.
func WriteSuccess(w http.ResponseWriter, r *http.Request, message string) {
	WriteEnvelope(w, r, http.StatusOK, nil, ocpi.StatusSuccess, message)
}

// WriteEnvelope writes an arbitrary envelope. The timestamp is taken from the
// request context so tests with an injected clock produce stable bodies.
func WriteEnvelope(w http.ResponseWriter, r *http.Request, httpStatus int, data any, statusCode int, statusMessage string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(envelope{
		Data:          data,
		StatusCode:    statusCode,
		StatusMessage: statusMessage,
		Timestamp:     ocpi.At(requestcontext.Now(r.Context())),
	})
}

// WriteError translates a domain error into HTTP status + envelope. Internal
// errors never leak their message to the peer.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	e := dErrors.From(err)
	message := e.Message
	if e.Code == dErrors.CodeInternal {
		message = "internal server error"
	}
	WriteEnvelope(w, r, dErrors.ToHTTPStatus(e.Code), nil, dErrors.ToOCPIStatus(e.Code), message)
}

// DecodeBody decodes a JSON request body into T, writing a bad-request
// envelope on failure. The bool result tells the handler whether to proceed.
func DecodeBody[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (T, bool) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		logger.WarnContext(r.Context(), "malformed request body",
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err,
		)
		WriteError(w, r, dErrors.New(dErrors.CodeBadRequest, "malformed JSON body"))
		return v, false
	}
	return v, true
}
