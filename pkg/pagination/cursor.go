// Package pagination converts store resume keys to and from opaque continuation tokens.
//
// A token is the standard base64 encoding of the JSON form of the resume key. Clients
// must treat it as meaningless; only Decode interprets it.
package pagination

import (
	"encoding/base64"
	"errors"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
)

// ErrInvalidToken is returned by Decode for any string that is not a token produced by Encode.
var ErrInvalidToken = errors.New("Invalid pagination token") //nolint:staticcheck // message is part of the API contract

// ResumeKey is the store-provided key attributes identifying where the next page starts.
type ResumeKey map[string]string

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Encode wraps key into an opaque token. A nil key means the listing is exhausted
// and yields the empty token.
func Encode(key ResumeKey) string {
	if key == nil {
		return ""
	}
	raw, err := codec.Marshal(key)
	if err != nil {
		// map[string]string always marshals; keep the zero token rather than panic.
		return ""
	}
	return base64.StdEncoding.EncodeToString(raw)
}

// Decode reverses Encode. The empty token means "first page" and yields a nil key.
func Decode(token string) (ResumeKey, error) {
	if token == "" {
		return nil, nil
	}

	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if !utf8.Valid(raw) {
		return nil, ErrInvalidToken
	}

	var key ResumeKey
	if err := codec.Unmarshal(raw, &key); err != nil {
		return nil, ErrInvalidToken
	}
	if key == nil {
		// "null" parses cleanly but is not a resume key.
		return nil, ErrInvalidToken
	}
	return key, nil
}
