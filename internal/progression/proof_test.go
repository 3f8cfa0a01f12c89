package progression

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

func dataURL(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func TestDecodeProof(t *testing.T) {
	proof, err := DecodeProof(dataURL("image/png", pngBytes), 0)
	require.NoError(t, err)
	assert.Equal(t, "image/png", proof.ContentType)
	assert.Equal(t, "png", proof.Extension())
	assert.Equal(t, pngBytes, proof.Data)
}

func TestDecodeProofRejects(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxBytes int
		message  string
	}{
		{"empty", "   ", 0, "required"},
		{"not a data url", "https://example.com/a.png", 0, "data URL"},
		{"missing comma", "data:image/png;base64", 0, "data URL"},
		{"not base64", "data:image/png," + string(pngBytes), 0, "base64 encoded"},
		{"unsupported type", dataURL("application/pdf", pngBytes), 0, "Unsupported image type"},
		{"bad base64", "data:image/png;base64,!!!!", 0, "not valid base64"},
		{"empty payload", "data:image/png;base64,", 0, "empty"},
		{"too large", dataURL("image/png", append(pngBytes, make([]byte, 64)...)), 32, "exceeds"},
		{"content is not an image", dataURL("image/png", []byte(strings.Repeat("hello ", 10))), 0, "not a supported image"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeProof(tt.input, tt.maxBytes)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidProof)

			appErr, ok := AsError(err)
			require.True(t, ok)
			assert.Contains(t, appErr.Message, tt.message)
			assert.Equal(t, 400, appErr.HTTPStatus())
		})
	}
}
