package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// maxBodyBytes bounds every request body. Bulk imports are the largest.
const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

// RequestBody reads a request body once and decodes it as JSON or plain text.
type RequestBody struct {
	body      []byte
	mediaType string
}

// ReadRequestBody reads at most maxBodyBytes from r.
func ReadRequestBody(w http.ResponseWriter, r *http.Request) (*RequestBody, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: body exceeds %d bytes", errBadRequest, maxBodyBytes)
		}
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return &RequestBody{body: body, mediaType: mediaType}, nil
}

// IsJSON reports whether the body should be decoded as JSON: either the
// content type says so, or it is unset and the body starts like an object.
func (b *RequestBody) IsJSON() bool {
	if b.mediaType == "application/json" {
		return true
	}
	if b.mediaType != "" {
		return false
	}
	trimmed := strings.TrimSpace(string(b.body))
	return strings.HasPrefix(trimmed, "{")
}

// Decode unmarshals a JSON body into v. Unknown fields are rejected.
func (b *RequestBody) Decode(v any) error {
	if len(b.body) == 0 {
		return fmt.Errorf("%w: empty body", errBadRequest)
	}
	dec := json.NewDecoder(strings.NewReader(string(b.body)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	return nil
}

// Text returns the body as a string.
func (b *RequestBody) Text() string {
	return string(b.body)
}
