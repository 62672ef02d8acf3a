package pagination

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEncodeDecodeRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		key := ResumeKey(rapid.MapOf(rapid.String(), rapid.String()).Draw(t, "key"))

		decoded, err := Decode(Encode(key))
		require.NoError(t, err)
		assert.Equal(t, key, decoded)
	})
}

func TestEncode_NilKeyMeansNoMorePages(t *testing.T) {
	assert.Equal(t, "", Encode(nil))
}

func TestDecode_EmptyTokenMeansFirstPage(t *testing.T) {
	key, err := Decode("")
	require.NoError(t, err)
	assert.Nil(t, key)
}

func TestDecode_StoreKeyShape(t *testing.T) {
	key := ResumeKey{"id": "u-1", "entityType": "USER", "createdAt": "2025-01-01T00:00:00Z"}

	token := Encode(key)
	decoded, err := Decode(token)

	require.NoError(t, err)
	assert.Equal(t, key, decoded)
}

func TestDecode_RejectsNonTokens(t *testing.T) {
	cases := map[string]string{
		"not base64":      "not-base64-json",
		"bangs":           "!!!",
		"base64 not json": base64.StdEncoding.EncodeToString([]byte("hello")),
		"json null":       base64.StdEncoding.EncodeToString([]byte("null")),
		"json array":      base64.StdEncoding.EncodeToString([]byte(`["a"]`)),
		"non string attr": base64.StdEncoding.EncodeToString([]byte(`{"id":1}`)),
		"invalid utf8":    base64.StdEncoding.EncodeToString([]byte{0xff, 0xfe, '{', '}'}),
	}

	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			key, err := Decode(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.Nil(t, key)
		})
	}
}

func TestDecode_ArbitraryStringsNeverPanic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		token := rapid.String().Draw(t, "token")

		key, err := Decode(token)
		if err != nil {
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.Nil(t, key)
		}
	})
}
