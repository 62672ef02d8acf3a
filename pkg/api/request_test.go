package api

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSplitVersionPrefix(t *testing.T) {
	tests := []struct {
		raw, base, path string
	}{
		{"/users", "", "/users"},
		{"/api/v1/users/123", "/api/v1", "/users/123"},
		{"/API/v2/users", "/API/v2", "/users"},
		{"/api/v10/docs/openapi.json", "/api/v10", "/docs/openapi.json"},
		{"/api/v1", "/api/v1", "/"},
		{"/api/v1/", "/api/v1", "/"},
		{"/api/version/users", "", "/api/version/users"},
		{"/api/V1/users", "", "/api/V1/users"},
		{"/api/v/users", "", "/api/v/users"},
		{"/apis/v1/users", "", "/apis/v1/users"},
		{"/", "", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			base, path := SplitVersionPrefix(tt.raw)
			assert.Equal(t, tt.base, base)
			assert.Equal(t, tt.path, path)
		})
	}
}

func TestNormalize_Defaults(t *testing.T) {
	req, err := Normalize(&Event{}, "corr-1")
	require.NoError(t, err)

	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/", req.Path)
	assert.Equal(t, "/", req.RawPath)
	assert.Empty(t, req.BasePath)
	assert.NotNil(t, req.Query)
	assert.NotNil(t, req.Params)
	assert.Equal(t, map[string]any{}, req.Body)
	assert.Equal(t, "{}", string(req.RawBody))
	assert.Equal(t, "corr-1", req.CorrelationID)
}

func TestNormalize_VersionedPath(t *testing.T) {
	req, err := Normalize(&Event{Method: "get", RawPath: "/api/v1/users/123"}, "c")
	require.NoError(t, err)

	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "/api/v1", req.BasePath)
	assert.Equal(t, "/users/123", req.Path)
	assert.Equal(t, "/api/v1/users/123", req.RawPath)
	assert.Equal(t, "123", req.Params["id"])
}

func TestNormalize_IDOnlyForTwoSegmentPaths(t *testing.T) {
	tests := []struct {
		raw, id string
	}{
		{"/users", ""},
		{"/users/42", "42"},
		{"/users/42/", "42"},
		{"/api/v2/users/42", "42"},
		{"/users/42/orders", ""},
		{"/users/42/anything/else", ""},
		{"/api/v1/users/42/orders", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			req, err := Normalize(&Event{RawPath: tt.raw}, "c")
			require.NoError(t, err)
			assert.Equal(t, tt.id, req.Params["id"])
		})
	}
}

func TestNormalize_PathParametersWin(t *testing.T) {
	req, err := Normalize(&Event{
		RawPath:        "/users/abc",
		PathParameters: map[string]string{"id": "xyz"},
	}, "c")
	require.NoError(t, err)
	assert.Equal(t, "xyz", req.Params["id"])
}

func TestNormalize_Body(t *testing.T) {
	t.Run("json object", func(t *testing.T) {
		req, err := Normalize(&Event{Body: `{"firstName":"Ada"}`}, "c")
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"firstName": "Ada"}, req.Body)
		assert.Equal(t, `{"firstName":"Ada"}`, string(req.RawBody))
	})

	t.Run("base64 body", func(t *testing.T) {
		enc := base64.StdEncoding.EncodeToString([]byte(`{"a":"b"}`))
		req, err := Normalize(&Event{Body: enc, IsBase64Encoded: true}, "c")
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": "b"}, req.Body)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := Normalize(&Event{Body: `{"a":`}, "c")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMalformedBody))
	})

	t.Run("bad base64", func(t *testing.T) {
		_, err := Normalize(&Event{Body: "%%%", IsBase64Encoded: true}, "c")
		assert.ErrorIs(t, err, ErrMalformedBody)
	})

	t.Run("unreadable body", func(t *testing.T) {
		_, err := Normalize(&Event{Body: `{"a":"b"}`, BodyErr: errors.New("connection reset")}, "c")
		assert.ErrorIs(t, err, ErrUnreadableBody)
		assert.NotErrorIs(t, err, ErrMalformedBody)
	})

	t.Run("whitespace body is empty", func(t *testing.T) {
		req, err := Normalize(&Event{Body: "  \n"}, "c")
		require.NoError(t, err)
		assert.Equal(t, map[string]any{}, req.Body)
	})
}

func TestNormalize_DoesNotAliasEventMaps(t *testing.T) {
	ev := &Event{QueryStringParameters: map[string]string{"limit": "5"}}
	req, err := Normalize(ev, "c")
	require.NoError(t, err)

	ev.QueryStringParameters["limit"] = "7"
	assert.Equal(t, "5", req.Query["limit"])
}

func TestResolveCorrelationID(t *testing.T) {
	ev := &Event{
		Headers:   map[string]string{"x-correlation-id": "from-header"},
		RequestID: "from-platform",
	}

	assert.Equal(t, "explicit", ResolveCorrelationID(ev, "explicit"))
	assert.Equal(t, "from-header", ResolveCorrelationID(ev, ""))

	ev.Headers = map[string]string{"X-CORRELATION-ID": "upper"}
	assert.Equal(t, "upper", ResolveCorrelationID(ev, ""))

	ev.Headers = nil
	assert.Equal(t, "from-platform", ResolveCorrelationID(ev, ""))

	ev.RequestID = ""
	generated := ResolveCorrelationID(ev, "")
	_, err := uuid.Parse(generated)
	assert.NoError(t, err)
}

func TestNormalize_PathInvariant(t *testing.T) {
	segment := rapid.StringMatching(`[A-Za-z0-9_-]{1,8}`)

	rapid.Check(t, func(t *rapid.T) {
		segs := rapid.SliceOfN(segment, 0, 4).Draw(t, "segments")
		rest := "/" + strings.Join(segs, "/")
		prefixed := rapid.Bool().Draw(t, "prefixed")

		raw := rest
		if prefixed {
			version := rapid.IntRange(0, 999).Draw(t, "version")
			raw = "/api/v" + strconv.Itoa(version) + rest
		}

		req, err := Normalize(&Event{RawPath: raw}, "c")
		if err != nil {
			t.Fatalf("normalize %q: %v", raw, err)
		}
		if req.BasePath+req.Path != raw && !(req.Path == "/" && req.BasePath == raw) {
			t.Fatalf("basePath %q + path %q does not rebuild %q", req.BasePath, req.Path, raw)
		}
		if !prefixed && req.BasePath != "" && !strings.EqualFold(segs[0], "api") {
			t.Fatalf("unexpected base path %q for %q", req.BasePath, raw)
		}
	})
}
