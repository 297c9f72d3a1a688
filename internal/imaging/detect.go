// Package imaging classifies raw image bytes for upload. Detection is a pure
// byte-signature check; it never decodes the image.
package imaging

import "bytes"

// OctetStream is the fallback type for unrecognized or truncated buffers.
const OctetStream = "application/octet-stream"

var pngSignature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// DetectContentType returns the MIME type of the image data based on its
// leading bytes. Buffers shorter than 12 bytes classify as octet-stream.
func DetectContentType(data []byte) string {
	if len(data) < 12 {
		return OctetStream
	}

	// ISO BMFF: a box-size-agnostic "ftyp" marker at offset 4 with the brand
	// at offset 8 covers both AVIF and HEIC families.
	if bytes.Equal(data[4:8], []byte("ftyp")) {
		switch string(data[8:12]) {
		case "avif", "avis":
			return "image/avif"
		case "heic", "heix":
			return "image/heic"
		}
	}

	if data[0] == 0xFF && data[1] == 0xD8 {
		return "image/jpeg"
	}

	if bytes.Equal(data[:8], pngSignature) {
		return "image/png"
	}

	if bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")) {
		return "image/webp"
	}

	return OctetStream
}

// FileExtension returns the upload filename extension for a detected MIME type.
func FileExtension(contentType string) string {
	switch contentType {
	case "image/avif":
		return "avif"
	case "image/heic":
		return "heic"
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	default:
		return "bin"
	}
}
