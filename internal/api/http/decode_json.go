package http

import (
	"encoding/json"
	"errors"
	"net/http"
)

// DecodeJSON decodes exactly one JSON value from the request body into dst.
// The body size is bounded by the BodyLimit middleware.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return InvalidJSON("empty body")
	}
	defer func() {
		_ = r.Body.Close()
	}()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var se *json.SyntaxError
		var ute *json.UnmarshalTypeError
		var mbe *http.MaxBytesError
		switch {
		case errors.As(err, &mbe):
			return NewAppError(http.StatusRequestEntityTooLarge, CodeRequestTooLarge,
				"request body too large", map[string]int64{"limit": mbe.Limit})
		case errors.As(err, &se):
			return InvalidJSON("malformed JSON")
		case errors.As(err, &ute):
			return InvalidJSON("type mismatch in JSON")
		default:
			return InvalidJSON("invalid JSON: " + err.Error())
		}
	}
	// Reject trailing values.
	if dec.More() {
		return InvalidJSON("multiple JSON values")
	}
	return nil
}
