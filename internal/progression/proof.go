package progression

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// DefaultMaxProofBytes caps a decoded proof image
const DefaultMaxProofBytes = 5 << 20

var proofContentTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// ProofUpload is a decoded, validated proof image
type ProofUpload struct {
	Data        []byte
	ContentType string
}

// Extension is the file extension matching the content type
func (p ProofUpload) Extension() string {
	return proofContentTypes[p.ContentType]
}

// DecodeProof parses a base64 data URL ("data:image/png;base64,....") and checks
// that the payload really is one of the accepted image formats.
func DecodeProof(dataURL string, maxBytes int) (ProofUpload, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxProofBytes
	}

	dataURL = strings.TrimSpace(dataURL)
	if dataURL == "" {
		return ProofUpload{}, ErrInvalidProof.WithMessage("Proof image is required")
	}
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return ProofUpload{}, ErrInvalidProof.WithMessage("Proof image must be a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return ProofUpload{}, ErrInvalidProof.WithMessage("Proof image must be a data URL")
	}
	mediaType, encoding, _ := strings.Cut(meta, ";")
	if encoding != "base64" {
		return ProofUpload{}, ErrInvalidProof.WithMessage("Proof image must be base64 encoded")
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if _, ok := proofContentTypes[mediaType]; !ok {
		return ProofUpload{}, ErrInvalidProof.WithMessage("Unsupported image type %q", mediaType)
	}

	if base64.StdEncoding.DecodedLen(len(payload)) > maxBytes+3 {
		return ProofUpload{}, ErrInvalidProof.WithMessage("Proof image exceeds %d bytes", maxBytes)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return ProofUpload{}, ErrInvalidProof.WithMessage("Proof image is not valid base64").WithCause(err)
	}
	if len(data) == 0 {
		return ProofUpload{}, ErrInvalidProof.WithMessage("Proof image is empty")
	}
	if len(data) > maxBytes {
		return ProofUpload{}, ErrInvalidProof.WithMessage("Proof image exceeds %d bytes", maxBytes)
	}

	sniffed := http.DetectContentType(data)
	if _, ok := proofContentTypes[sniffed]; !ok {
		return ProofUpload{}, ErrInvalidProof.WithMessage("Proof content is not a supported image")
	}

	return ProofUpload{Data: data, ContentType: sniffed}, nil
}
