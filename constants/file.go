package constants

import "strings"

// Document formats understood by the text extractor.
const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
)

// ImageExtensions holds the raster formats that go straight to OCR.
var ImageExtensions = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"bmp":  {},
	"tiff": {},
	"tif":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat returns PDF, IMAGE or "" for an extension (with or without the dot).
func MapExtToFormat(ext string) string {
	ext = NormalizeExt(ext)
	if ext == "pdf" {
		return PDF
	}
	if _, ok := ImageExtensions[ext]; ok {
		return IMAGE
	}
	return ""
}
