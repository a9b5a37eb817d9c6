package artifact

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMetadata(t *testing.T) {
	data := []byte(`{"model": "gpt-4", "llm_service_rate_limit": 4000, "tech": "wind", "num_urls": 5}`)

	md, err := decodeMetadata(metaFile, data)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4", md.Model)
	require.NotNil(t, md.RateLimit)
	assert.Equal(t, int64(4000), *md.RateLimit)

	// Unmodeled keys survive verbatim, modeled keys are stripped.
	assert.JSONEq(t, `{"tech": "wind", "num_urls": 5}`, md.Extra.String())
}

func TestDecodeMetadata_ExtraPreservesFormatting(t *testing.T) {
	// The bag is carved out of the original bytes, so key order and number
	// formatting survive untouched.
	data := []byte(`{"zeta": 1.50, "model": "gpt-4", "alpha": {"nested": true}}`)

	md, err := decodeMetadata(metaFile, data)
	require.NoError(t, err)

	extra := md.Extra.String()
	assert.JSONEq(t, `{"zeta": 1.50, "alpha": {"nested": true}}`, extra)
	assert.Contains(t, extra, "1.50") // a decode-reencode cycle would render 1.5
	assert.Less(t, strings.Index(extra, "zeta"), strings.Index(extra, "alpha"))
}

func TestDecodeMetadata_ModelOnly(t *testing.T) {
	md, err := decodeMetadata(metaFile, []byte(`{"model": "gpt-4"}`))
	require.NoError(t, err)

	assert.Equal(t, "gpt-4", md.Model)
	assert.Nil(t, md.RateLimit)
	assert.True(t, md.Extra.IsEmpty())
}

func TestDecodeMetadata_Malformed(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		reason string
	}{
		{"invalid JSON", `{"model"`, "invalid JSON"},
		{"not an object", `"gpt-4"`, "not an object"},
		{"missing model", `{"tech": "wind"}`, `"model"`},
		{"empty model", `{"model": ""}`, "non-empty string"},
		{"model wrong type", `{"model": 7}`, "non-empty string"},
		{"rate limit wrong type", `{"model": "gpt-4", "llm_service_rate_limit": "fast"}`, "must be a number"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decodeMetadata(metaFile, []byte(tc.input))
			require.Error(t, err)
			assert.True(t, IsMalformed(err))
			assert.Contains(t, err.Error(), tc.reason)
		})
	}
}
