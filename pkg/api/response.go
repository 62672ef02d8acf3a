package api

import (
	"net/http"
)

// Headers holds response headers keyed by canonical header name.
type Headers map[string]string

// Get returns the named header.
func (h Headers) Get(name string) string {
	return h[http.CanonicalHeaderKey(name)]
}

// Set replaces the named header.
func (h Headers) Set(name, value string) {
	h[http.CanonicalHeaderKey(name)] = value
}

// Del removes the named header.
func (h Headers) Del(name string) {
	delete(h, http.CanonicalHeaderKey(name))
}

// Has reports whether the named header is present.
func (h Headers) Has(name string) bool {
	_, ok := h[http.CanonicalHeaderKey(name)]
	return ok
}

// Clone returns a copy of h.
func (h Headers) Clone() Headers {
	out := make(Headers, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Response is the outbound record produced by handlers and stages. A nil Body means
// no body is sent.
type Response struct {
	Status  int
	Headers Headers
	Body    []byte
}

// JSON builds a response carrying v serialized as JSON. Status 204 never carries a body.
func JSON(status int, v any, headers ...Headers) (*Response, error) {
	res := &Response{Status: status, Headers: Headers{}}
	res.Headers.Set("Content-Type", "application/json")
	for _, extra := range headers {
		for k, val := range extra {
			res.Headers.Set(k, val)
		}
	}
	if status == http.StatusNoContent {
		return res, nil
	}

	body, err := codec.Marshal(v)
	if err != nil {
		return nil, err
	}
	res.Body = body
	return res, nil
}

// MustJSON is JSON for values that always serialize, such as maps of strings.
func MustJSON(status int, v any, headers ...Headers) *Response {
	res, err := JSON(status, v, headers...)
	if err != nil {
		panic(err)
	}
	return res
}

// NoContent builds an empty 204 response.
func NoContent() *Response {
	res := &Response{Status: http.StatusNoContent, Headers: Headers{}}
	res.Headers.Set("Content-Type", "application/json")
	return res
}

// Raw builds a response with a pre-rendered body and content type.
func Raw(status int, contentType string, body []byte) *Response {
	res := &Response{Status: status, Headers: Headers{}, Body: body}
	res.Headers.Set("Content-Type", contentType)
	return res
}

// EnsureHeaders allocates the header map when missing.
func (r *Response) EnsureHeaders() Headers {
	if r.Headers == nil {
		r.Headers = Headers{}
	}
	return r.Headers
}
