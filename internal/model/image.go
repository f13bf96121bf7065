package model

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

// Image is an uploaded image waiting for detection.
type Image struct {
	Filename string
	Data     []byte
	FileSize int64
}

// NewImage wraps uploaded bytes with their original filename.
func NewImage(filename string, data []byte) *Image {
	return &Image{
		Filename: filename,
		Data:     data,
		FileSize: int64(len(data)),
	}
}

// Extension returns the lower-case extension without the leading dot.
func (i *Image) Extension() string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(i.Filename), "."))
}

// Digest returns the hex SHA-256 of the image content.
func (i *Image) Digest() string {
	sum := sha256.Sum256(i.Data)
	return hex.EncodeToString(sum[:])
}
