package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"medfollow/internal/apperr"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Println("failed to write response:", err)
	}
}

// writeError renders err.  Anything that is not an AppError becomes the
// generic internal error; the cause is logged, never returned.
func writeError(w http.ResponseWriter, err error) {
	ae := apperr.From(err)
	if ae.HTTPStatus >= http.StatusInternalServerError {
		log.Println("request failed:", err)
	}
	body := map[string]any{
		"error": ae.Message,
		"code":  ae.Code,
	}
	if len(ae.Details) > 0 {
		body["details"] = ae.Details
	}
	writeJSON(w, ae.HTTPStatus, body)
}

// decodeJSON reads a JSON body into v.  An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperr.BadRequest("invalid JSON body")
	}
	return nil
}
