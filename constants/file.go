package constants

import (
	"path/filepath"
	"strings"
)

// ImageExtensions holds the file extensions accepted as capture frames.
var ImageExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"gif":  {},
	"bmp":  {},
	"tif":  {},
	"tiff": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsImagePath reports whether path has one of the ImageExtensions.
func IsImagePath(path string) bool {
	_, ok := ImageExtensions[NormalizeExt(filepath.Ext(path))]
	return ok
}
