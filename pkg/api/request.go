package api

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

// HeaderCorrelationID carries the request correlation id in both directions.
const HeaderCorrelationID = "X-Correlation-Id"

// ErrMalformedBody marks a request body that is not valid JSON.
var ErrMalformedBody = errors.New("malformed request body")

// ErrUnreadableBody marks a request body the gateway failed to receive.
var ErrUnreadableBody = errors.New("unreadable request body")

var (
	codec         = jsoniter.ConfigCompatibleWithStandardLibrary
	versionSegRe  = regexp.MustCompile(`^v[0-9]+$`)
	emptyBodyJSON = []byte("{}")
)

// Event is an inbound gateway event.
type Event struct {
	Method                string
	RawPath               string
	Headers               map[string]string
	QueryStringParameters map[string]string
	PathParameters        map[string]string
	Body                  string
	IsBase64Encoded       bool
	// RequestID is the platform-provided request id, if any.
	RequestID string
	// BodyErr records a failure to receive the body. Normalize rejects such events.
	BodyErr error
}

// Header returns the value of the named header, matched case-insensitively.
func (e *Event) Header(name string) (string, bool) {
	return lookupFold(e.Headers, name)
}

// BodyBytes returns the raw body, decoding base64 payloads.
func (e *Event) BodyBytes() ([]byte, error) {
	if e.BodyErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableBody, e.BodyErr)
	}
	if e.Body == "" {
		return nil, nil
	}
	if !e.IsBase64Encoded {
		return []byte(e.Body), nil
	}
	raw, err := base64.StdEncoding.DecodeString(e.Body)
	if err != nil {
		return nil, fmt.Errorf("decode base64 body: %w", err)
	}
	return raw, nil
}

// Request is the canonical record handed to the router and domain handlers.
// It is not modified after Normalize returns.
type Request struct {
	Method string
	// Path is RawPath without any /api/v<n> prefix.
	Path    string
	RawPath string
	// BasePath is the stripped version prefix, or empty.
	BasePath      string
	Query         map[string]string
	Params        map[string]string
	Body          any
	RawBody       []byte
	Headers       map[string]string
	CorrelationID string
}

// Header returns the value of the named request header, matched case-insensitively.
func (r *Request) Header(name string) (string, bool) {
	return lookupFold(r.Headers, name)
}

// Normalize converts ev into a canonical Request. correlationID is the value resolved
// by the host; when empty it is resolved from the event itself. A body that is not
// valid JSON yields an error wrapping ErrMalformedBody.
func Normalize(ev *Event, correlationID string) (*Request, error) {
	method := strings.ToUpper(ev.Method)
	if method == "" {
		method = http.MethodGet
	}
	rawPath := ev.RawPath
	if rawPath == "" {
		rawPath = "/"
	}
	basePath, path := SplitVersionPrefix(rawPath)

	req := &Request{
		Method:        method,
		Path:          path,
		RawPath:       rawPath,
		BasePath:      basePath,
		Query:         copyMap(ev.QueryStringParameters),
		Params:        copyMap(ev.PathParameters),
		Headers:       copyMap(ev.Headers),
		CorrelationID: ResolveCorrelationID(ev, correlationID),
	}
	if _, ok := req.Params["id"]; !ok {
		if id := idSegment(path); id != "" {
			req.Params["id"] = id
		}
	}

	raw, err := ev.BodyBytes()
	if errors.Is(err, ErrUnreadableBody) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		req.Body = map[string]any{}
		req.RawBody = emptyBodyJSON
		return req, nil
	}

	var body any
	if err := codec.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	req.Body = body
	req.RawBody = raw
	return req, nil
}

// ResolveCorrelationID picks the correlation id for ev: the explicit host value,
// then the X-Correlation-Id header, then the platform request id, then a new UUID.
func ResolveCorrelationID(ev *Event, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if v, ok := ev.Header(HeaderCorrelationID); ok && v != "" {
		return v
	}
	if ev.RequestID != "" {
		return ev.RequestID
	}
	return uuid.NewString()
}

// SplitVersionPrefix separates a leading /api/v<digits> segment pair from rawPath.
// The api segment is matched case-insensitively. When no prefix is present basePath
// is empty and path equals rawPath.
func SplitVersionPrefix(rawPath string) (basePath, path string) {
	segments := strings.SplitN(strings.TrimPrefix(rawPath, "/"), "/", 3)
	if len(segments) < 2 || !strings.EqualFold(segments[0], "api") || !versionSegRe.MatchString(segments[1]) {
		return "", rawPath
	}

	basePath = "/" + segments[0] + "/" + segments[1]
	if len(segments) == 3 {
		path = "/" + segments[2]
	} else {
		path = "/"
	}
	return basePath, path
}

// idSegment returns the second segment of a two-segment path such as /users/42.
// Deeper paths are not resource addresses and yield no id.
func idSegment(path string) string {
	var segments []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	if len(segments) != 2 {
		return ""
	}
	return segments[1]
}

func lookupFold(m map[string]string, name string) (string, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

func copyMap(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
