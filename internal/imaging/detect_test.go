package imaging

import "testing"

func ftypBuffer(brand string) []byte {
	buf := []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p'}
	return append(buf, []byte(brand)...)
}

func TestDetectContentType(t *testing.T) {
	jpeg := make([]byte, 16)
	jpeg[0], jpeg[1] = 0xFF, 0xD8

	png := append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 8)...)

	webp := append([]byte("RIFF"), 0x24, 0x00, 0x00, 0x00)
	webp = append(webp, []byte("WEBP")...)

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", jpeg, "image/jpeg"},
		{"png", png, "image/png"},
		{"webp", webp, "image/webp"},
		{"avif", ftypBuffer("avif"), "image/avif"},
		{"avif sequence", ftypBuffer("avis"), "image/avif"},
		{"heic", ftypBuffer("heic"), "image/heic"},
		{"heix", ftypBuffer("heix"), "image/heic"},
		{"unknown brand", ftypBuffer("mp42"), OctetStream},
		{"zeroes", []byte{0, 0, 0, 0}, OctetStream},
		{"short jpeg prefix", []byte{0xFF, 0xD8}, OctetStream},
		{"empty", nil, OctetStream},
		{"random", []byte("not an image at all"), OctetStream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectContentType(tt.data); got != tt.want {
				t.Errorf("DetectContentType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFileExtension(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
	}{
		{"image/avif", "avif"},
		{"image/heic", "heic"},
		{"image/jpeg", "jpg"},
		{"image/png", "png"},
		{"image/webp", "webp"},
		{OctetStream, "bin"},
		{"text/plain", "bin"},
	}

	for _, tt := range tests {
		if got := FileExtension(tt.contentType); got != tt.want {
			t.Errorf("FileExtension(%q) = %q, want %q", tt.contentType, got, tt.want)
		}
	}
}
