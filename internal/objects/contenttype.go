package objects

import (
	"path"
	"strings"
)

// MediaClass partitions uploads into the two families with distinct ceilings.
type MediaClass string

const (
	MediaClassImage MediaClass = "image"
	MediaClassVideo MediaClass = "video"
)

var imageTypeByExtension = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

var videoTypeByExtension = map[string]string{
	"mov":  "video/quicktime",
	"mp4":  "video/mp4",
	"m4v":  "video/x-m4v",
	"webm": "video/webm",
}

// extensionByType is the reverse table used when deriving storage paths from
// an upload's content type. jpeg collapses onto jpg.
var extensionByType = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/gif":       "gif",
	"image/webp":      "webp",
	"video/quicktime": "mov",
	"video/mp4":       "mp4",
	"video/x-m4v":     "m4v",
	"video/webm":      "webm",
}

// candidateExtensions drives the delete sweep when no photo row records the
// stored path. The empty entry covers extensionless legacy objects.
var candidateExtensions = []string{
	"jpg", "jpeg", "png", "gif", "webp",
	"mov", "mp4", "m4v", "webm",
	"",
}

// ContentTypeForPath derives a MIME type from the path's file extension,
// defaulting to application/octet-stream for unknown extensions.
func ContentTypeForPath(objectPath string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(objectPath), "."))
	if mime, ok := imageTypeByExtension[ext]; ok {
		return mime
	}
	if mime, ok := videoTypeByExtension[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// ExtensionForContentType returns the canonical extension for an allowed
// upload MIME type.
func ExtensionForContentType(contentType string) (string, bool) {
	ext, ok := extensionByType[normalizeContentType(contentType)]
	return ext, ok
}

// ClassifyContentType reports which media class an upload content type
// belongs to; ok is false for types outside both allow-lists.
func ClassifyContentType(contentType string) (MediaClass, bool) {
	normalized := normalizeContentType(contentType)
	for _, mime := range imageTypeByExtension {
		if mime == normalized {
			return MediaClassImage, true
		}
	}
	for _, mime := range videoTypeByExtension {
		if mime == normalized {
			return MediaClassVideo, true
		}
	}
	return "", false
}

// IsVideoContentType reports whether the type belongs to the video
// allow-list; only those objects honor Range requests.
func IsVideoContentType(contentType string) bool {
	class, ok := ClassifyContentType(contentType)
	return ok && class == MediaClassVideo
}

// AllowedUploadTypes lists every MIME type the upload surface accepts.
func AllowedUploadTypes() []string {
	types := make([]string, 0, len(extensionByType))
	for mime := range extensionByType {
		types = append(types, mime)
	}
	return types
}

func normalizeContentType(contentType string) string {
	base, _, found := strings.Cut(contentType, ";")
	if found {
		base = strings.TrimSpace(base)
	}
	return strings.ToLower(strings.TrimSpace(base))
}
