package codec

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF}, "jpeg"},
		{"png", []byte{0x89, 'P', 'N', 'G'}, "png"},
		{"gif", []byte("GIF89a"), "gif"},
		{"tiff little endian", []byte{0x49, 0x49, 0x2A, 0x00}, "tiff"},
		{"tiff big endian", []byte{0x4D, 0x4D, 0x00, 0x2A}, "tiff"},
		{"unknown", []byte{0x00, 0x01}, "jpeg"},
		{"empty", nil, "jpeg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFormat(tt.data))
		})
	}
}

func TestDataURL(t *testing.T) {
	data := []byte{0x89, 'P', 'N', 'G', 1, 2, 3}

	url := DataURL(data)
	require.True(t, strings.HasPrefix(url, "data:image/png;base64,"))

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, "data:image/png;base64,"))
	require.NoError(t, err)
	assert.Equal(t, data, decoded)
}

func TestIsGIF(t *testing.T) {
	assert.True(t, IsGIF([]byte("GIF87a....")))
	assert.True(t, IsGIF([]byte("GIF89a")))
	assert.False(t, IsGIF([]byte("GIF")))
	assert.False(t, IsGIF([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0}))
}

func TestFilenameHelpers(t *testing.T) {
	assert.Equal(t, "jpg", Ext("Cat.JPG"))
	assert.Equal(t, "", Ext("noext"))
	assert.Equal(t, "archive.tar", Base("archive.tar.gz"))
	assert.Equal(t, "cat", Base("cat.jpg"))

	assert.True(t, IsImageFile("a.jpeg"))
	assert.True(t, IsImageFile("b.GIF"))
	assert.False(t, IsImageFile("c.webp"))
	assert.False(t, IsImageFile("d.zip"))
}
