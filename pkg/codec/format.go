package codec

import (
	"encoding/base64"
	"path/filepath"
	"strings"
)

// DetectFormat sniffs the first byte of data. Unknown input is reported as jpeg.
func DetectFormat(data []byte) string {
	if len(data) == 0 {
		return "jpeg"
	}

	switch data[0] {
	case 0xFF:
		return "jpeg"
	case 0x89:
		return "png"
	case 0x47:
		return "gif"
	case 0x49, 0x4D:
		return "tiff"
	default:
		return "jpeg"
	}
}

// DataURL wraps data in a data:image/<format>;base64 URL.
func DataURL(data []byte) string {
	return "data:image/" + DetectFormat(data) + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// IsGIF checks for the "GIF" signature of GIF87a/GIF89a files.
func IsGIF(data []byte) bool {
	return len(data) >= 6 && data[0] == 'G' && data[1] == 'I' && data[2] == 'F'
}

// Ext returns the lowercase extension of name without the dot.
func Ext(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// Base returns name without its extension.
func Base(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

var imageExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"gif":  true,
}

// IsImageFile reports whether name has one of the importable image extensions.
func IsImageFile(name string) bool {
	return imageExtensions[Ext(name)]
}
